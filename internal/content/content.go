// Package content holds the per-platform constraints a post must satisfy
// before it may be dispatched. Violations are hard preconditions, never
// retryable publish failures.
package content

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/draftwire/socialcast/internal/models"
)

// twitterURLLength is Twitter's fixed wrapped-link length: every URL counts
// as 23 characters no matter how long it actually is.
const twitterURLLength = 23

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

var characterLimits = map[string]int{
	models.PlatformTwitter:   280,
	models.PlatformLinkedin:  3000,
	models.PlatformInstagram: 2200,
}

var hashtagLimits = map[string]int{
	models.PlatformTwitter:   5,
	models.PlatformLinkedin:  10,
	models.PlatformInstagram: 30,
}

func CharacterLimit(platform string) int {
	return characterLimits[platform]
}

func HashtagLimit(platform string) int {
	return hashtagLimits[platform]
}

// CountCharacters applies the platform's own counting rule. Only Twitter
// deviates from plain rune length: each URL occurrence is counted as a
// fixed 23 characters regardless of its real length.
func CountCharacters(platform, text string) int {
	if platform != models.PlatformTwitter {
		return len([]rune(text))
	}

	urls := urlPattern.FindAllString(text, -1)
	withoutURLs := urlPattern.ReplaceAllString(text, "")
	return len([]rune(withoutURLs)) + twitterURLLength*len(urls)
}

// Render produces the text actually sent to the platform: the content
// followed, when hashtags exist, by a blank line and the "#tag" list.
func Render(postContent string, hashtags []string) string {
	if len(hashtags) == 0 {
		return postContent
	}

	tags := make([]string, 0, len(hashtags))
	for _, h := range hashtags {
		h = strings.TrimSpace(strings.TrimPrefix(h, "#"))
		if h == "" {
			continue
		}
		tags = append(tags, "#"+h)
	}
	if len(tags) == 0 {
		return postContent
	}

	return postContent + "\n\n" + strings.Join(tags, " ")
}

// Validate checks a post against its platform's constraints. It never
// touches account state; a violation simply blocks the publish.
func Validate(platform, postContent string, hashtags, mediaURLs []string) error {
	if !models.IsValidPlatform(platform) {
		return fmt.Errorf("unsupported platform %q", platform)
	}

	if strings.TrimSpace(postContent) == "" {
		return fmt.Errorf("content cannot be empty")
	}

	if limit := HashtagLimit(platform); len(hashtags) > limit {
		return fmt.Errorf("%s allows at most %d hashtags, got %d", platform, limit, len(hashtags))
	}

	rendered := Render(postContent, hashtags)
	if count, limit := CountCharacters(platform, rendered), CharacterLimit(platform); count > limit {
		return fmt.Errorf("%s allows at most %d characters, got %d", platform, limit, count)
	}

	if platform == models.PlatformInstagram && len(mediaURLs) == 0 {
		return fmt.Errorf("instagram posts require at least one media url")
	}

	return nil
}
