package feed

import (
	"fmt"

	"github.com/samber/lo"
	"mvdan.cc/xurls/v2"
)

// ExtractURLs returns the distinct http(s) URLs found in free text, in order
// of first appearance.
func ExtractURLs(text string) ([]string, error) {
	httpURLRe, err := xurls.StrictMatchingScheme(`https?://`)
	if err != nil {
		return nil, fmt.Errorf("create regexp: %w", err)
	}

	return lo.Uniq(httpURLRe.FindAllString(text, -1)), nil
}
