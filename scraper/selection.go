package scraper

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// Selector picks a subset of options, returning their indices in ascending order.
type Selector interface {
	Select(title string, options []string) ([]int, error)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(title string, options []string) ([]int, error)

// Select calls f.
func (f SelectorFunc) Select(title string, options []string) ([]int, error) {
	return f(title, options)
}

// SelectAll picks every option.
var SelectAll Selector = SelectorFunc(func(_ string, options []string) ([]int, error) {
	return allIndices(len(options)), nil
})

// NameSelector picks options whose label matches one of the names,
// ignoring case. An empty list picks everything.
type NameSelector []string

// Select implements Selector.
func (n NameSelector) Select(_ string, options []string) ([]int, error) {
	if len(n) == 0 {
		return allIndices(len(options)), nil
	}
	var picked []int
	for i, option := range options {
		for _, name := range n {
			if strings.EqualFold(strings.TrimSpace(name), option) {
				picked = append(picked, i)
				break
			}
		}
	}
	return picked, nil
}

// PromptSelector asks the operator on Out and reads the answer from In.
// Answers are 1-based numbers and ranges, e.g. "1,3-5". An empty answer picks everything.
type PromptSelector struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPromptSelector builds a selector reading from in and prompting on out.
func NewPromptSelector(in io.Reader, out io.Writer) *PromptSelector {
	return &PromptSelector{in: bufio.NewReader(in), out: out}
}

// Select implements Selector.
func (p *PromptSelector) Select(title string, options []string) ([]int, error) {
	if len(options) == 0 {
		return nil, nil
	}
	fmt.Fprintf(p.out, "\n%s\n", title)
	for i, option := range options {
		fmt.Fprintf(p.out, "  [%d] %s\n", i+1, option)
	}
	for {
		fmt.Fprint(p.out, "Select (e.g. 1,3-5; empty for all): ")
		line, err := p.in.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				return allIndices(len(options)), nil
			}
			return nil, fmt.Errorf("read selection: %w", err)
		}
		picked, perr := parseSelection(line, len(options))
		if perr == nil {
			return picked, nil
		}
		fmt.Fprintf(p.out, "%v\n", perr)
		if err == io.EOF {
			return nil, perr
		}
	}
}

func parseSelection(input string, n int) ([]int, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.EqualFold(input, "all") {
		return allIndices(n), nil
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q", part)
		}
		to := from
		if isRange {
			to, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("invalid selection %q", part)
			}
		}
		if from < 1 || to > n || from > to {
			return nil, fmt.Errorf("selection %q out of range 1-%d", part, n)
		}
		for i := from; i <= to; i++ {
			seen[i-1] = true
		}
	}

	picked := make([]int, 0, len(seen))
	for i := range seen {
		picked = append(picked, i)
	}
	slices.Sort(picked)
	return picked, nil
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
