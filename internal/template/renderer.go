// Package template implements the per-recipient message renderer: variable
// substitution plus single-pass conditional blocks, both case-insensitive.
//
// No output escaping is performed. Rendered values are interpolated as raw
// markup for rich/html campaigns, which is safe only because recipient data
// is operator-supplied. If custom fields ever originate from untrusted
// input this becomes an HTML injection vector.
package template

import (
	"regexp"
	"strings"
)

var (
	varPattern  = regexp.MustCompile(`\{\{(\w+)\}\}`)
	condPattern = regexp.MustCompile(`(?s)\{\{#if\s+(\w+)\}\}(.*?)\{\{/if\}\}`)
)

// Render resolves conditional blocks, then substitutes variables. Lookup is
// case-insensitive. A variable with no matching key, or whose value is the
// empty string, is left verbatim in the output; blanking or erroring on
// unmatched tokens is deliberately not done.
//
// Conditionals run as a single pass before substitution, so nested
// {{#if}} blocks are not supported: the inner block's open tag pairs with
// the first {{/if}}. Rendering is pure, the same template and data always
// produce identical output.
func Render(tmpl string, data map[string]string) string {
	folded := foldKeys(data)

	out := condPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		groups := condPattern.FindStringSubmatch(match)
		if folded[strings.ToLower(groups[1])] != "" {
			return groups[2]
		}
		return ""
	})

	return varPattern.ReplaceAllStringFunc(out, func(match string) string {
		groups := varPattern.FindStringSubmatch(match)
		if v := folded[strings.ToLower(groups[1])]; v != "" {
			return v
		}
		return match
	})
}

// Data builds the substitution map for one recipient: the email address
// under the "email" key plus every custom field.
func Data(email string, customFields map[string]string) map[string]string {
	data := make(map[string]string, len(customFields)+1)
	for k, v := range customFields {
		data[k] = v
	}
	data["email"] = email
	return data
}

func foldKeys(data map[string]string) map[string]string {
	folded := make(map[string]string, len(data))
	for k, v := range data {
		folded[strings.ToLower(k)] = v
	}
	return folded
}
