// ABOUTME: Article display metadata returned by the lookup service
// ABOUTME: Also builds resume deep-links carrying the last page position

package progress

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// ResumeParam is the query parameter carrying a target completion percentage.
const ResumeParam = "pos"

// ArticleMeta is presentation metadata for an article.
type ArticleMeta struct {
	ID         EntityID `json:"id"`
	Title      string   `json:"title"`
	Permalink  string   `json:"permalink"`
	TotalPages int      `json:"total_pages"`
}

// ResumeURL builds the link that reopens an article at lastPage with the
// viewport centered at pagePercent. Pages after the first use the
// "<permalink>/<n>/" convention.
func ResumeURL(permalink string, lastPage int, pagePercent float64) string {
	pos := int(math.Round(Clamp(pagePercent, 0, 100)))

	u, err := url.Parse(permalink)
	if err != nil {
		return permalink
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/"
	if lastPage > 1 {
		u.Path += strconv.Itoa(lastPage) + "/"
	}
	q := u.Query()
	q.Set(ResumeParam, strconv.Itoa(pos))
	u.RawQuery = q.Encode()
	return u.String()
}
