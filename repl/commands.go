package repl

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/drpcorg/abacus"
)

var ErrNoCurrent = errors.New("abacus: no current collection, try new or use")

// view loads the current collection's snapshot for reading.
func (r *REPL) view() (*abacus.Collection[any, Doc], error) {
	if r.current == "" {
		return nil, ErrNoCurrent
	}
	return r.Shelf.View(r.current)
}

// update publishes a change to the current collection through the shelf.
func (r *REPL) update(fn func(c *abacus.Collection[any, Doc]) error) error {
	if r.current == "" {
		return ErrNoCurrent
	}
	return r.Shelf.Update(r.current, fn)
}

// scalar parses a token the way document fields parse: JSON first, so 42 is
// a float64 and true a bool; bare words fall back to strings.
func scalar(token string) any {
	var v any
	if err := json.Unmarshal([]byte(token), &v); err == nil {
		return v
	}
	return token
}

// parseKey reads INDEX:SECONDARY when the prefix names a registered index,
// anything else as a primary key scalar.
func parseKey(c *abacus.Collection[any, Doc], token string) abacus.Key[any] {
	if i := strings.Index(token, ":"); i > 0 {
		name := token[:i]
		if _, ok := c.Indexes()[name]; ok {
			return abacus.By[any](name, scalar(token[i+1:]))
		}
	}
	return abacus.PK(scalar(token))
}

func printDoc(doc Doc) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}

var HelpNew = errors.New("new NAME KEYFIELD  (NAME - draws a generated one)")

func (r *REPL) CommandNew(rest string) error {
	args := strings.Fields(rest)
	if len(args) != 2 {
		return HelpNew
	}
	name := args[0]
	if name == "-" {
		name = ""
	}
	name, err := r.Shelf.Create(name, keyOf(args[1]))
	if err != nil {
		return err
	}
	r.watch(name)
	r.use(name)
	fmt.Printf("collection %s keyed by %q\n", name, args[1])
	return nil
}

var HelpUse = errors.New("use NAME")

func (r *REPL) CommandUse(rest string) error {
	if rest == "" {
		return HelpUse
	}
	if _, err := r.Shelf.View(rest); err != nil {
		return err
	}
	r.use(rest)
	return nil
}

func (r *REPL) CommandShelf(string) error {
	for _, name := range r.Shelf.Names() {
		c, err := r.Shelf.View(name)
		if err != nil {
			continue
		}
		marker := "  "
		if name == r.current {
			marker = "* "
		}
		fmt.Printf("%s%s\t%s\n", marker, name, c)
	}
	return nil
}

var HelpDropCollection = errors.New("drop NAME")

func (r *REPL) CommandDrop(rest string) error {
	if rest == "" {
		return HelpDropCollection
	}
	if err := r.Shelf.Drop(rest); err != nil {
		return err
	}
	r.unwatch(rest)
	if r.current == rest {
		r.current = ""
		r.rl.SetPrompt(r.cfg.Prompt)
	}
	return nil
}

var HelpPut = errors.New(`put {"name":"Bob","age":20}`)

func (r *REPL) CommandPut(rest string) error {
	if rest == "" {
		return HelpPut
	}
	var doc Doc
	if err := json.Unmarshal([]byte(rest), &doc); err != nil {
		return err
	}
	return r.update(func(c *abacus.Collection[any, Doc]) error {
		return c.Put(doc)
	})
}

var HelpGet = errors.New("get KEY | get INDEX:KEY")

func (r *REPL) CommandGet(rest string) error {
	if rest == "" {
		return HelpGet
	}
	c, err := r.view()
	if err != nil {
		return err
	}
	doc, ok := c.Get(parseKey(c, rest))
	if !ok {
		fmt.Println("not found")
		return nil
	}
	return printDoc(doc)
}

var HelpFetch = errors.New("fetch KEY | fetch INDEX:KEY")

func (r *REPL) CommandFetch(rest string) error {
	if rest == "" {
		return HelpFetch
	}
	c, err := r.view()
	if err != nil {
		return err
	}
	doc, err := c.Fetch(parseKey(c, rest))
	if err != nil {
		return err
	}
	return printDoc(doc)
}

var HelpPop = errors.New("pop KEY | pop INDEX:KEY")

func (r *REPL) CommandPop(rest string) error {
	if rest == "" {
		return HelpPop
	}
	var popped Doc
	err := r.update(func(c *abacus.Collection[any, Doc]) error {
		var err error
		popped, err = c.Pop(parseKey(c, rest))
		return err
	})
	if err != nil {
		return err
	}
	return printDoc(popped)
}

var HelpSet = errors.New("set KEY FIELD VALUE")

func (r *REPL) CommandSet(rest string) error {
	args := strings.Fields(rest)
	if len(args) != 3 {
		return HelpSet
	}
	field, value := args[1], scalar(args[2])
	return r.update(func(c *abacus.Collection[any, Doc]) error {
		return c.Update(parseKey(c, args[0]), func(doc Doc) Doc {
			// snapshots share docs, so edit a copy
			next := make(Doc, len(doc)+1)
			for k, v := range doc {
				next[k] = v
			}
			next[field] = value
			return next
		})
	})
}

var HelpHas = errors.New(`has {"name":"Bob","age":20}`)

func (r *REPL) CommandHas(rest string) error {
	if rest == "" {
		return HelpHas
	}
	var doc Doc
	if err := json.Unmarshal([]byte(rest), &doc); err != nil {
		return err
	}
	c, err := r.view()
	if err != nil {
		return err
	}
	fmt.Println(c.Contains(doc))
	return nil
}

var HelpPrimaryKey = errors.New("pk INDEX KEY")

func (r *REPL) CommandPrimaryKey(rest string) error {
	args := strings.Fields(rest)
	if len(args) != 2 {
		return HelpPrimaryKey
	}
	c, err := r.view()
	if err != nil {
		return err
	}
	primary, err := c.PrimaryKey(args[0], scalar(args[1]))
	if err != nil {
		return err
	}
	fmt.Println(primary)
	return nil
}

var HelpIndex = errors.New("index add|addhash|addlazy NAME FIELD | index drop NAME | index ls")

func (r *REPL) CommandIndex(rest string) error {
	args := strings.Fields(rest)
	if len(args) == 0 {
		return HelpIndex
	}
	switch args[0] {
	case "ls":
		c, err := r.view()
		if err != nil {
			return err
		}
		kinds := c.Indexes()
		names := make([]string, 0, len(kinds))
		for name := range kinds {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Printf("%s\t%s\n", name, kinds[name])
		}
		return nil
	case "drop":
		if len(args) != 2 {
			return HelpIndex
		}
		return r.update(func(c *abacus.Collection[any, Doc]) error {
			return c.DropIndex(args[1])
		})
	case "add", "addhash", "addlazy":
		if len(args) != 3 {
			return HelpIndex
		}
		kinds := map[string]string{"add": "eager", "addhash": "hash", "addlazy": "lazy"}
		return r.update(func(c *abacus.Collection[any, Doc]) error {
			return addIndex(c, IndexConfig{Name: args[1], Field: args[2], Kind: kinds[args[0]]})
		})
	default:
		return HelpIndex
	}
}

func (r *REPL) CommandList(string) error {
	c, err := r.view()
	if err != nil {
		return err
	}
	for doc := range c.Values() {
		if err := printDoc(doc); err != nil {
			return err
		}
	}
	return nil
}

func (r *REPL) CommandKeys(string) error {
	c, err := r.view()
	if err != nil {
		return err
	}
	for _, k := range c.Keys() {
		fmt.Println(k)
	}
	return nil
}

func (r *REPL) CommandLen(string) error {
	c, err := r.view()
	if err != nil {
		return err
	}
	fmt.Println(c.Len())
	return nil
}

func (r *REPL) CommandDump(string) error {
	c, err := r.view()
	if err != nil {
		return err
	}
	c.DumpTo(os.Stdout)
	return nil
}

var HelpLoad = errors.New("load FILE.yml")

func (r *REPL) CommandLoad(rest string) error {
	if rest == "" {
		return HelpLoad
	}
	cfg, err := LoadConfig(rest)
	if err != nil {
		return err
	}
	return r.seed(cfg.Collections)
}

var HelpMetrics = errors.New("metrics ADDR  (like :9100)")

func (r *REPL) CommandMetrics(rest string) error {
	if rest == "" {
		return HelpMetrics
	}
	return r.serveMetrics(rest)
}

func (r *REPL) CommandStats(string) error {
	fmt.Printf("collections:\t%d\n", r.Shelf.Size())
	fmt.Printf("commands:\t%d\n", r.ops)
	if r.latency != nil {
		fmt.Printf("avg ms:\t\t%.3f\n", r.latency.Val())
	}
	if r.serving != "" {
		fmt.Printf("metrics:\t%s\n", r.serving)
	}
	return nil
}

func (r *REPL) CommandHelp(string) error {
	fmt.Print(`collections
  new NAME KEYFIELD   create a collection keyed by a document field (- for a generated name)
  use NAME            switch to a collection
  ls                  list collections
  drop NAME           drop a collection
values (JSON objects; KEY is a scalar or INDEX:SECONDARY)
  put JSON            insert or replace
  get KEY             print the value, or "not found"
  fetch KEY           print the value, absence is an error
  pop KEY             remove and print the value
  set KEY FIELD VALUE rewrite one field through the update path
  has JSON            is this exact document stored
  pk INDEX KEY        translate a secondary key (eager indexes only)
indexes
  index add NAME FIELD      eager index over a field
  index addhash NAME FIELD  eager index storing digests only
  index addlazy NAME FIELD  lazy index, resolved by scanning
  index drop NAME
  index ls
inspection
  list | keys | len | dump
other
  load FILE.yml       seed collections from a config file
  metrics ADDR        serve prometheus metrics
  stats               session counters
  exit | quit
`)
	return nil
}
