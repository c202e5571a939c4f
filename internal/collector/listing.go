package collector

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/qepting91/linkfinder/internal/domain"
)

var imageExt = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp)(\?.*)?$`)

type redditPost struct {
	ID                  string  `json:"id"`
	Title               string  `json:"title"`
	Selftext            string  `json:"selftext"`
	SelftextHTML        string  `json:"selftext_html"`
	Author              string  `json:"author"`
	Subreddit           string  `json:"subreddit"`
	Permalink           string  `json:"permalink"`
	URL                 string  `json:"url"`
	URLOverriddenByDest string  `json:"url_overridden_by_dest"`
	Score               int     `json:"score"`
	NumComments         int     `json:"num_comments"`
	CreatedUTC          float64 `json:"created_utc"`
	IsSelf              bool    `json:"is_self"`
	PostHint            string  `json:"post_hint"`
	IsGallery           bool    `json:"is_gallery"`
	Preview             *struct {
		Images []struct {
			Source struct {
				URL string `json:"url"`
			} `json:"source"`
		} `json:"images"`
	} `json:"preview"`
	GalleryData *struct {
		Items []struct {
			MediaID string `json:"media_id"`
		} `json:"items"`
	} `json:"gallery_data"`
	MediaMetadata map[string]struct {
		S struct {
			U string `json:"u"`
		} `json:"s"`
	} `json:"media_metadata"`
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data *redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// decodeListing turns a listing body into posts tagged with source.
func decodeListing(body []byte, source string) ([]domain.Post, error) {
	var l redditListing
	if err := json.Unmarshal(body, &l); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	posts := make([]domain.Post, 0, len(l.Data.Children))
	for _, c := range l.Data.Children {
		if c.Data == nil || c.Data.ID == "" {
			continue
		}
		posts = append(posts, c.Data.toPost(source))
	}
	return posts, nil
}

// decodeThread reads the post out of a comments-page body, which is an
// array whose first element is a one-item listing.
func decodeThread(body []byte, source string) (domain.Post, bool, error) {
	var thread []redditListing
	if err := json.Unmarshal(body, &thread); err != nil {
		return domain.Post{}, false, fmt.Errorf("decode thread: %w", err)
	}
	if len(thread) == 0 || len(thread[0].Data.Children) == 0 || thread[0].Data.Children[0].Data == nil {
		return domain.Post{}, false, nil
	}
	p := thread[0].Data.Children[0].Data
	if source == "" {
		source = p.Subreddit
	}
	return p.toPost(source), true, nil
}

func (p *redditPost) toPost(source string) domain.Post {
	url := p.URLOverriddenByDest
	if url == "" {
		url = p.URL
	}
	return domain.Post{
		ID:           p.ID,
		Title:        p.Title,
		Body:         p.Selftext,
		BodyHTML:     p.SelftextHTML,
		Author:       p.Author,
		Subreddit:    p.Subreddit,
		Source:       source,
		Permalink:    p.Permalink,
		URL:          url,
		Preview:      p.preview(),
		Score:        p.Score,
		CommentCount: p.NumComments,
		CreatedUTC:   p.CreatedUTC,
		IsSelf:       p.IsSelf,
		IsImage:      p.isImage(url),
	}
}

func (p *redditPost) isImage(url string) bool {
	if p.PostHint == "image" {
		return true
	}
	if p.IsGallery && len(p.MediaMetadata) > 0 {
		return true
	}
	return imageExt.MatchString(url)
}

func (p *redditPost) preview() string {
	if p.Preview != nil && len(p.Preview.Images) > 0 {
		if u := p.Preview.Images[0].Source.URL; u != "" {
			return strings.ReplaceAll(u, "&amp;", "&")
		}
	}
	if len(p.MediaMetadata) == 0 {
		return ""
	}
	var first string
	if p.GalleryData != nil && len(p.GalleryData.Items) > 0 {
		first = p.GalleryData.Items[0].MediaID
	} else {
		keys := slices.Sorted(maps.Keys(p.MediaMetadata))
		first = keys[0]
	}
	return strings.ReplaceAll(p.MediaMetadata[first].S.U, "&amp;", "&")
}
