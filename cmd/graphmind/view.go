package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/psidex/graphmind/internal/interaction"
	"github.com/psidex/graphmind/internal/layout"
	"github.com/psidex/graphmind/internal/render"
	"github.com/psidex/graphmind/internal/session"
	"github.com/psidex/graphmind/internal/store"
	"github.com/psidex/graphmind/internal/view"
)

var (
	viewFormat string
	viewOutput string
	viewHover  string
	viewHTTP   bool
)

func init() {
	viewCmd.Flags().StringVarP(&viewFormat, "format", "f", "echarts",
		"output format: "+strings.Join(render.FormatNames(), ", "))
	viewCmd.Flags().StringVarP(&viewOutput, "output", "o", "", "output file without extension (default: the topic's safe name)")
	viewCmd.Flags().StringVar(&viewHover, "hover", "", "highlight this node and its neighbours")
	viewCmd.Flags().BoolVar(&viewHTTP, "http", false, "fetch over HTTP instead of subscribing over the websocket")
	rootCmd.AddCommand(viewCmd)
}

var viewCmd = &cobra.Command{
	Use:   "view <topic>",
	Short: "Lay out a topic and render it to a file",
	Long: `Lay out a topic and render it to a file.

Example:
  graphmind view "Roman Empire" --hover Caesar --format vis`,
	Args: cobra.ExactArgs(1),
	RunE: runView,
}

func runView(cmd *cobra.Command, args []string) error {
	topic := args[0]
	renderer, err := render.ByName(viewFormat)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout())
	defer cancel()

	v := view.New(layout.NewEngine(cfg.Layout), interaction.DefaultPalette(), newKnowledgeClient(),
		logger.With("component", "view"))

	if !viewHTTP {
		sess, err := dialHub(ctx, v)
		if err != nil {
			logger.Warn("realtime connection failed, falling back to HTTP", "err", err)
		} else {
			v.Attach(sess)
			defer func() {
				if err := v.Detach(); err != nil {
					logger.Warn("teardown", "err", err)
				}
				sess.Close()
			}()
		}
	}

	if err := v.SelectTopic(ctx, topic); err != nil {
		return err
	}
	if err := v.WaitLoaded(ctx); err != nil {
		return fmt.Errorf("loading %q: %w", topic, err)
	}
	if viewHover != "" {
		v.Hover(viewHover)
	}

	scene := v.Scene()
	if scene.Nodes.Len() == 0 {
		subtle.Printf("%q has no nodes yet\n", topic)
	}

	name := viewOutput
	if name == "" {
		name = store.SafeName(topic)
	}
	path, err := render.RenderToFile(renderer, name, scene)
	if err != nil {
		return err
	}

	fmt.Printf("%s %d nodes, %d edges -> %s\n", brand.Sprint(topic), scene.Nodes.Len(), len(scene.Edges), good.Sprint(path))
	if scene.Hover.Visible {
		fmt.Printf("  %s %s\n", accent.Sprint(scene.Hover.Label+":"), scene.Hover.Summary)
	}
	return nil
}

func dialHub(ctx context.Context, v *view.View) (*session.Session, error) {
	wsURL, err := websocketURL(cfg.Client.HubURL)
	if err != nil {
		return nil, err
	}
	return session.Dial(ctx, wsURL, v, logger.With("component", "session"))
}

// websocketURL turns the hub's base URL into the URL of its websocket endpoint.
func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("hub url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("hub url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}
