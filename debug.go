package abacus

import (
	"fmt"
	"io"
	"slices"
	"strings"
)

// String renders a one-line summary for logs and prompts. The format is for
// eyes, not parsers.
func (c *Collection[K, V]) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "abacus(%d values", c.store.len())
	names := make([]string, 0, len(c.eager)+len(c.lazy))
	for name := range c.eager {
		names = append(names, name)
	}
	for name := range c.lazy {
		names = append(names, name)
	}
	slices.Sort(names)
	kinds := c.Indexes()
	for _, name := range names {
		fmt.Fprintf(&b, ", %s:%s", name, kinds[name])
	}
	b.WriteByte(')')
	return b.String()
}

// DumpTo writes the summary line and then every entry, one per line, in scan
// order.
func (c *Collection[K, V]) DumpTo(w io.Writer) {
	fmt.Fprintln(w, c.String())
	for k, v := range c.store.all() {
		fmt.Fprintf(w, "%v:\t%v\n", k, v)
	}
}
