// Package markup renders small HTML fragments (links, user pictures) for table cells.
package markup

import (
	"html"
	"sort"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/aura-webinar/webcast/pkg/weburl"
)

var strict = bluemonday.StrictPolicy()

// Text strips every tag from user-supplied text and returns it HTML-escaped.
func Text(s string) string {
	return strict.Sanitize(s)
}

// Attrs are HTML attributes rendered in key order.
type Attrs map[string]string

func (a Attrs) render() string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(" " + k + `="` + html.EscapeString(a[k]) + `"`)
	}
	return b.String()
}

// Link renders <a href=...> around escaped text.
func Link(u *weburl.URL, text string, attrs Attrs) string {
	all := Attrs{"href": u.String()}
	for k, v := range attrs {
		if k != "href" {
			all[k] = v
		}
	}
	return "<a" + all.render() + ">" + html.EscapeString(text) + "</a>"
}

// PictureUser is the subset of user fields a picture needs.
type PictureUser struct {
	ID        int64
	Picture   int64
	FirstName string
	LastName  string
	ImageAlt  string
}

// FullName joins first and last name.
func (u PictureUser) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// PictureOptions controls UserPicture output.
type PictureOptions struct {
	CourseID int64
	Link     bool
	Size     int
	// AltFormat renders the default alt text from the full name, e.g. "Picture of %s".
	AltFormat func(fullname string) string
	Base      string
}

// UserPicture renders the avatar image, optionally linked to the user's profile.
func UserPicture(u PictureUser, opts PictureOptions) string {
	size := opts.Size
	if size <= 0 {
		size = 35
	}
	var src *weburl.URL
	if u.Picture > 0 {
		src = weburl.New("/pluginfile.php/user/" + strconv.FormatInt(u.ID, 10) + "/icon/f2")
	} else {
		src = weburl.New("/pix/u/f2.png")
	}
	src.WithBase(opts.Base)

	alt := u.ImageAlt
	if alt == "" {
		if opts.AltFormat != nil {
			alt = opts.AltFormat(u.FullName())
		} else {
			alt = u.FullName()
		}
	}
	alt = html.UnescapeString(Text(alt))
	img := "<img" + Attrs{
		"src":    src.String(),
		"alt":    alt,
		"title":  alt,
		"class":  "userpicture",
		"width":  strconv.Itoa(size),
		"height": strconv.Itoa(size),
	}.render() + " />"
	if !opts.Link {
		return img
	}
	profile := weburl.New("/user/view.php", weburl.P("id", strconv.FormatInt(u.ID, 10)))
	if opts.CourseID > 0 {
		profile.Set("course", strconv.FormatInt(opts.CourseID, 10))
	}
	profile.WithBase(opts.Base)
	return `<a href="` + html.EscapeString(profile.String()) + `">` + img + "</a>"
}
