// Package kino holds the movie-channel domain: caption records and prompts.
package kino

import (
	"strings"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/domain/models"
)

// Caption field names as they appear in the structured model output.
const (
	FieldTitle       = "title"
	FieldGenre       = "genre"
	FieldYear        = "year"
	FieldDescription = "description"
	FieldHashtags    = "hashtags"
)

// Caption is the metadata block of one channel post.
type Caption struct {
	Title       string   `json:"title" mapstructure:"title"`
	Genre       string   `json:"genre" mapstructure:"genre"`
	Year        string   `json:"year" mapstructure:"year"`
	Description string   `json:"description" mapstructure:"description"`
	Hashtags    []string `json:"hashtags" mapstructure:"hashtags"`
}

// RequiredFields lists the keys every caption payload must carry.
func RequiredFields() []string {
	return []string{FieldTitle, FieldGenre, FieldYear, FieldDescription, FieldHashtags}
}

// CaptionSchema is the response schema sent with caption requests.
func CaptionSchema() map[string]any {
	return models.ObjectSchema(map[string]any{
		FieldTitle:       models.StringProperty(""),
		FieldGenre:       models.StringProperty(""),
		FieldYear:        models.StringProperty(""),
		FieldDescription: models.StringProperty(""),
		FieldHashtags:    models.StringArrayProperty(""),
	}, RequiredFields())
}

// PostText renders the caption as the Telegram post body.
func (c Caption) PostText() string {
	var b strings.Builder
	b.WriteString(c.Title)
	b.WriteString("\n\n🎬 Janr: ")
	b.WriteString(c.Genre)
	b.WriteString("\n📅 Yil: ")
	b.WriteString(c.Year)
	b.WriteString("\n\n📝 Tavsif: ")
	b.WriteString(c.Description)
	b.WriteString("\n\n")
	b.WriteString(strings.Join(normalizeHashtags(c.Hashtags), " "))
	return b.String()
}

func normalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		out = append(out, tag)
	}
	return out
}
