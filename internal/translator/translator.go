// Package translator sends address-tagged text batches to an
// OpenAI-compatible chat completions endpoint and maps the translated
// text back by address. The wire contract is line-oriented: one
// "<<address>> text" line per unit, with newlines inside a unit escaped.
package translator

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

const (
	// DefaultModel is the default chat model used for translation
	DefaultModel = "gpt-4o"
	// DefaultTimeout is the HTTP client timeout for one API call
	DefaultTimeout = 120 * time.Second
	// MaxRetries is the number of retry attempts after an API error
	MaxRetries = 2
	// BaseRetryDelay is the base delay between retries
	BaseRetryDelay = 2 * time.Second
	// MaxBatchChars caps the payload text of one request. This is the
	// provider-side request sizing and has nothing to do with the
	// pipeline's page batching.
	MaxBatchChars = 4000
)

// Translator maps address-tagged source text to address-tagged
// translated text. Addresses absent from the result are left
// untranslated by the caller.
type Translator interface {
	Translate(ctx context.Context, units map[string]string, source, target types.Lang) (map[string]string, error)
}

// reTaggedLine matches one "<<address>> text" line of the wire format
var reTaggedLine = regexp.MustCompile(`^<<([^>]+)>>\s?(.*)$`)

// FormatUnits renders units into the tagged wire text, ordered by
// address for stable output. Newlines inside a unit are escaped so one
// unit stays one line.
func FormatUnits(units map[string]string) string {
	addrs := make([]string, 0, len(units))
	for a := range units {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	var sb strings.Builder
	for _, a := range addrs {
		text := strings.ReplaceAll(units[a], "\n", `\n`)
		fmt.Fprintf(&sb, "<<%s>> %s\n", a, text)
	}
	return sb.String()
}

// ParseUnits parses tagged wire text back into an address map. Untagged
// continuation lines are appended to the previous unit; models
// occasionally reflow long lines despite instructions.
func ParseUnits(text string) map[string]string {
	out := make(map[string]string)
	last := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := reTaggedLine.FindStringSubmatch(line); m != nil {
			last = strings.TrimSpace(m[1])
			out[last] = strings.ReplaceAll(m[2], `\n`, "\n")
			continue
		}
		if last != "" && strings.TrimSpace(line) != "" {
			out[last] += "\n" + line
		}
	}
	return out
}

// batches splits units into address groups whose combined text stays
// under the request size cap. Addresses are sorted first so identical
// input always produces identical batches.
func batches(units map[string]string, maxChars int) [][]string {
	addrs := make([]string, 0, len(units))
	for a := range units {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	var out [][]string
	var cur []string
	size := 0
	for _, a := range addrs {
		n := len(units[a]) + len(a)
		if len(cur) > 0 && size+n > maxChars {
			out = append(out, cur)
			cur = nil
			size = 0
		}
		cur = append(cur, a)
		size += n
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// mergeBatches runs f over every batch with bounded concurrency and
// merges the per-batch results. The first error wins; remaining batches
// still finish so partial results stay usable.
func mergeBatches(ctx context.Context, units map[string]string, concurrency int,
	f func(ctx context.Context, batch map[string]string) (map[string]string, error)) (map[string]string, error) {

	groups := batches(units, MaxBatchChars)
	results := make([]map[string]string, len(groups))
	errs := make([]error, len(groups))

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, group := range groups {
		wg.Add(1)
		go func(idx int, addrs []string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			batch := make(map[string]string, len(addrs))
			for _, a := range addrs {
				batch[a] = units[a]
			}
			results[idx], errs[idx] = f(ctx, batch)
		}(i, group)
	}
	wg.Wait()

	merged := make(map[string]string, len(units))
	var firstErr error
	for i := range groups {
		if errs[i] != nil {
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		for a, text := range results[i] {
			merged[a] = text
		}
	}
	if firstErr != nil {
		logger.Warn("translation finished with failed batches",
			logger.Int("batches", len(groups)),
			logger.Err(firstErr))
	}
	return merged, firstErr
}
