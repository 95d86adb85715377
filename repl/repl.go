// Package repl is an interactive shell over a shelf of collections. Values
// are JSON objects; the primary key is one of their fields, picked per
// collection. It exists to poke at indexes and watch the metrics move, not
// to be a database.
package repl

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/drpcorg/abacus"
	"github.com/drpcorg/abacus/shelf"
	"github.com/drpcorg/abacus/utils"
	"github.com/ergochat/readline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Doc is what the prompt traffics in, one JSON object per value.
type Doc = map[string]any

type REPL struct {
	Shelf *shelf.Shelf[any, Doc]

	cfg        *Config
	log        utils.Logger
	rl         *readline.Instance
	current    string
	collectors map[string]*abacus.Collector[any, Doc]
	ops        int
	latency    *utils.AvgVal
	serving    string
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),

	readline.PcItem("new"),
	readline.PcItem("use"),
	readline.PcItem("ls"),
	readline.PcItem("drop"),

	readline.PcItem("put"),
	readline.PcItem("get"),
	readline.PcItem("fetch"),
	readline.PcItem("pop"),
	readline.PcItem("set"),
	readline.PcItem("has"),
	readline.PcItem("pk"),

	readline.PcItem("index",
		readline.PcItem("add"),
		readline.PcItem("addhash"),
		readline.PcItem("addlazy"),
		readline.PcItem("drop"),
		readline.PcItem("ls"),
	),

	readline.PcItem("list"),
	readline.PcItem("keys"),
	readline.PcItem("len"),
	readline.PcItem("dump"),

	readline.PcItem("load"),
	readline.PcItem("metrics"),
	readline.PcItem("stats"),

	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func New(cfg *Config, log utils.Logger) *REPL {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = utils.NewDefaultLogger(slog.LevelInfo)
	}
	return &REPL{
		Shelf:      shelf.New[any, Doc](log),
		cfg:        cfg,
		log:        log,
		collectors: make(map[string]*abacus.Collector[any, Doc]),
	}
}

func (r *REPL) Open() (err error) {
	r.rl, err = readline.NewEx(&readline.Config{
		Prompt:          r.cfg.Prompt,
		HistoryFile:     r.cfg.History,
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return err
	}
	r.rl.CaptureExitSignal()
	if err = r.seed(r.cfg.Collections); err != nil {
		return err
	}
	if r.cfg.Metrics != "" {
		return r.serveMetrics(r.cfg.Metrics)
	}
	return nil
}

func (r *REPL) Close() error {
	if r.rl != nil {
		_ = r.rl.Close()
		r.rl = nil
	}
	return nil
}

func (r *REPL) Run() error {
	for {
		line, err := r.rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				return nil
			}
			continue
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cmd, rest := line, ""
		if ws := strings.IndexAny(line, " \t"); ws > 0 {
			cmd, rest = line[:ws], strings.TrimSpace(line[ws:])
		}
		if cmd == "exit" || cmd == "quit" {
			return nil
		}

		start := time.Now()
		err = r.dispatch(cmd, rest)
		elapsed := float64(time.Since(start).Microseconds()) / 1000.0
		r.ops++
		if r.latency == nil {
			r.latency = utils.NewAvgVal(elapsed)
		} else {
			r.latency.Add(elapsed)
		}
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

func (r *REPL) dispatch(cmd, rest string) error {
	switch cmd {
	case "new":
		return r.CommandNew(rest)
	case "use":
		return r.CommandUse(rest)
	case "ls":
		return r.CommandShelf(rest)
	case "drop":
		return r.CommandDrop(rest)
	case "put":
		return r.CommandPut(rest)
	case "get":
		return r.CommandGet(rest)
	case "fetch":
		return r.CommandFetch(rest)
	case "pop":
		return r.CommandPop(rest)
	case "set":
		return r.CommandSet(rest)
	case "has":
		return r.CommandHas(rest)
	case "pk":
		return r.CommandPrimaryKey(rest)
	case "index":
		return r.CommandIndex(rest)
	case "list":
		return r.CommandList(rest)
	case "keys":
		return r.CommandKeys(rest)
	case "len":
		return r.CommandLen(rest)
	case "dump":
		return r.CommandDump(rest)
	case "load":
		return r.CommandLoad(rest)
	case "metrics":
		return r.CommandMetrics(rest)
	case "stats":
		return r.CommandStats(rest)
	case "help":
		return r.CommandHelp(rest)
	default:
		_, _ = fmt.Fprintf(os.Stderr, "command unknown: %s\n", cmd)
		return nil
	}
}

// seed creates and fills collections declared in the config or in a loaded
// file. The last one declared becomes current.
func (r *REPL) seed(configs []CollectionConfig) error {
	for _, cc := range configs {
		if cc.Key == "" {
			return fmt.Errorf("collection %q: key field missing", cc.Name)
		}
		name, err := r.Shelf.Create(cc.Name, keyOf(cc.Key))
		if err != nil {
			return err
		}
		err = r.Shelf.Update(name, func(c *abacus.Collection[any, Doc]) error {
			for _, ic := range cc.Indexes {
				if err := addIndex(c, ic); err != nil {
					return err
				}
			}
			for _, doc := range cc.Values {
				normalized, err := normalize(doc)
				if err != nil {
					return err
				}
				if err := c.Put(normalized); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			_ = r.Shelf.Drop(name)
			return fmt.Errorf("collection %q: %w", name, err)
		}
		r.watch(name)
		r.use(name)
	}
	return nil
}

func keyOf(field string) func(Doc) any {
	return func(doc Doc) any { return doc[field] }
}

func addIndex(c *abacus.Collection[any, Doc], ic IndexConfig) error {
	field := ic.Field
	switch ic.Kind {
	case "", "eager":
		return c.CreateIndex(ic.Name, func(doc Doc) any { return doc[field] })
	case "hash":
		return c.CreateHashIndex(ic.Name, func(doc Doc) string { return fmt.Sprint(doc[field]) })
	case "lazy":
		return c.CreateLazyIndex(ic.Name, func(doc Doc) any { return doc[field] })
	default:
		return fmt.Errorf("index %q: unknown kind %q", ic.Name, ic.Kind)
	}
}

func (r *REPL) use(name string) {
	r.current = name
	r.rl.SetPrompt(name + "> ")
}

// watch registers a prometheus collector following the named collection's
// published snapshot.
func (r *REPL) watch(name string) {
	col := abacus.NewCollector(name, func() *abacus.Collection[any, Doc] {
		c, err := r.Shelf.View(name)
		if err != nil {
			return nil
		}
		return c
	})
	if err := prometheus.Register(col); err == nil {
		r.collectors[name] = col
		r.log.Debug("collector registered", "collection", name)
	}
}

func (r *REPL) unwatch(name string) {
	if col, ok := r.collectors[name]; ok {
		prometheus.Unregister(col)
		delete(r.collectors, name)
		r.log.Debug("collector unregistered", "collection", name)
	}
}

func (r *REPL) serveMetrics(addr string) error {
	if r.serving != "" {
		return fmt.Errorf("metrics already on %s", r.serving)
	}
	_ = prometheus.Register(shelf.Ops)
	_ = prometheus.Register(shelf.UpdateRetries)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.Serve(lis, mux)
	}()
	r.serving = lis.Addr().String()
	fmt.Printf("serving /metrics on %s\n", r.serving)
	return nil
}
