// Command batch keeps a durable queue of images on the local machine and
// submits them one at a time to the image studio API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"image-studio-backend/internal/apiclient"
	"image-studio-backend/internal/logging"
	"image-studio-backend/internal/queue"
)

func main() {
	app := &cli.App{
		Name:  "batch",
		Usage: "queue images locally and submit them for transformation",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://localhost:8080", Usage: "API base URL", EnvVars: []string{"IMAGE_STUDIO_SERVER"}},
			&cli.StringFlag{Name: "token", Usage: "Supabase access token; anonymous when empty", EnvVars: []string{"IMAGE_STUDIO_TOKEN"}},
			&cli.StringFlag{Name: "queue-file", Value: defaultQueueFile(), Usage: "file holding the durable queue"},
			&cli.StringFlag{Name: "redis-url", Usage: "keep the queue in Redis instead of a file", EnvVars: []string{"REDIS_URL"}},
			&cli.StringFlag{Name: "queue-key", Value: "image-studio:queue", Usage: "Redis key for the queue"},
			&cli.StringFlag{Name: "log-level", Value: "warn"},
		},
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "add image files to the queue",
				ArgsUsage: "FILE...",
				Action:    addAction,
			},
			{
				Name:   "list",
				Usage:  "show queued items",
				Action: listAction,
			},
			{
				Name:  "process",
				Usage: "submit every pending item",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mode", Value: "enhance", Usage: "enhance or upscale"},
					&cli.StringSliceFlag{Name: "param", Usage: "extra transformation option as key=value"},
				},
				Action: processAction,
			},
			{
				Name:      "remove",
				Usage:     "remove one item",
				ArgsUsage: "ID",
				Action:    removeAction,
			},
			{
				Name:   "clear",
				Usage:  "delete the whole queue",
				Action: clearAction,
			},
			{
				Name:   "usage",
				Usage:  "show current usage and whether the next submission is allowed",
				Action: usageAction,
			},
			{
				Name:      "register",
				Usage:     "register an email for the anonymous trial",
				ArgsUsage: "EMAIL",
				Action:    registerAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func defaultQueueFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".image-studio", "queue.json")
	}
	return filepath.Join(home, ".image-studio", "queue.json")
}

func openStore(c *cli.Context) (queue.Store, func(), error) {
	if url := c.String("redis-url"); url != "" {
		client, err := queue.DialRedis(c.Context, url)
		if err != nil {
			return nil, nil, err
		}
		return queue.NewRedisStore(client, c.String("queue-key"), 0), func() { client.Close() }, nil
	}
	return queue.NewFileStore(c.String("queue-file")), func() {}, nil
}

// openManager loads the durable queue and prints any notices it raises.
func openManager(c *cli.Context) (*queue.Manager, func(), error) {
	store, closeStore, err := openStore(c)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.NewWithOutput(c.String("log-level"), "text", os.Stderr)
	out := c.App.Writer
	m := queue.NewManager(store,
		apiclient.NewClient(c.String("server"), c.String("token")),
		queue.WithLogger(logging.Component(logger, "queue")),
		queue.WithNotifier(func(n queue.Notice) {
			fmt.Fprintf(out, "[%s] %s\n", n.Kind, n.Message)
		}),
	)
	if err := m.Load(c.Context); err != nil {
		closeStore()
		return nil, nil, err
	}
	return m, closeStore, nil
}

func addAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("add needs at least one file", 2)
	}

	files := make([]queue.File, 0, c.NArg())
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		abs, _ := filepath.Abs(path)
		files = append(files, queue.File{Name: filepath.Base(path), Path: abs, Data: data})
	}

	m, done, err := openManager(c)
	if err != nil {
		return err
	}
	defer done()

	added, err := m.Add(c.Context, files)
	if err != nil {
		return err
	}
	for _, it := range added {
		fmt.Fprintf(c.App.Writer, "queued %s (%s)\n", it.ID, it.Name)
	}
	return nil
}

func listAction(c *cli.Context) error {
	m, done, err := openManager(c)
	if err != nil {
		return err
	}
	defer done()

	items := m.Items()
	if len(items) == 0 {
		fmt.Fprintln(c.App.Writer, "queue is empty")
		return nil
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tDETAIL")
	for _, it := range items {
		detail := it.ResultRef
		if it.Status == queue.StatusError {
			detail = it.ErrorMessage
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.ID, it.Name, it.Status, detail)
	}
	return tw.Flush()
}

func processAction(c *cli.Context) error {
	params, err := parseParams(c.StringSlice("param"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	c.Context = ctx

	m, done, err := openManager(c)
	if err != nil {
		return err
	}
	defer done()

	go guardInterrupts(ctx, cancel, m, c.App.ErrWriter)

	start := time.Now()
	sum, err := m.Process(ctx, queue.Options{Mode: c.String("mode"), Params: params})
	fmt.Fprintf(c.App.Writer, "completed %d, failed %d, pending %d (%s)\n",
		sum.Completed, sum.Failed, sum.Remaining, time.Since(start).Round(time.Millisecond))

	switch {
	case errors.Is(err, queue.ErrQuotaExceeded):
		return cli.Exit("quota exceeded: purchase more images, then run process again", 3)
	case errors.Is(err, context.Canceled):
		return cli.Exit("interrupted; pending items will be retried next run", 130)
	}
	return err
}

// guardInterrupts warns on the first Ctrl-C while work is pending and stops
// the run on the second.
func guardInterrupts(ctx context.Context, cancel context.CancelFunc, m *queue.Manager, w io.Writer) {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	warned := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			if !warned && m.HasUnsavedWork() {
				warned = true
				fmt.Fprintln(w, "images are still queued or processing; press Ctrl-C again to stop")
				continue
			}
			cancel()
			return
		}
	}
}

func removeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("remove needs exactly one item id", 2)
	}
	m, done, err := openManager(c)
	if err != nil {
		return err
	}
	defer done()
	return m.Remove(c.Context, c.Args().First())
}

func clearAction(c *cli.Context) error {
	m, done, err := openManager(c)
	if err != nil {
		return err
	}
	defer done()
	if err := m.Clear(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "queue cleared")
	return nil
}

func usageAction(c *cli.Context) error {
	client := apiclient.NewClient(c.String("server"), c.String("token"))
	u, err := client.Usage(c.Context)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "identity: %s\nused: %d", u.Identity, u.Used)
	if u.Limit > 0 {
		fmt.Fprintf(c.App.Writer, " of %d", u.Limit)
	}
	fmt.Fprintln(c.App.Writer)
	if u.Allowed {
		fmt.Fprintln(c.App.Writer, "next submission: allowed")
	} else {
		fmt.Fprintf(c.App.Writer, "next submission: refused (%s)\n", u.Reason)
	}
	return nil
}

func registerAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("register needs an email address", 2)
	}
	client := apiclient.NewClient(c.String("server"), c.String("token"))
	if err := client.RegisterEmail(c.Context, c.Args().First()); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "email registered")
	return nil
}

func parseParams(raw []string) (map[string]string, error) {
	params := make(map[string]string, len(raw))
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("param %q must be key=value", kv)
		}
		params[k] = v
	}
	return params, nil
}
