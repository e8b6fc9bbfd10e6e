package useractivity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aura-webinar/webcast/internal/table"
	"github.com/aura-webinar/webcast/pkg/markup"
	"github.com/aura-webinar/webcast/pkg/weburl"
)

const (
	// ActivityPath is the report page; the action buttons link back to it.
	ActivityPath = "/mod/webcast/user_activity.php"

	ActionChatTime = "user_chattime"
	ActionChatLog  = "user_chatlog"
)

func get(env table.Env, key string) string {
	if env.Strings == nil {
		return key
	}
	return env.Strings.Get(key)
}

// ActionURL is the detail page of one user's activity.
func ActionURL(env table.Env, userID int64, action string) *weburl.URL {
	return weburl.New(ActivityPath,
		weburl.P("user_id", strconv.FormatInt(userID, 10)),
		weburl.P("id", strconv.FormatInt(env.CourseModuleID, 10)),
		weburl.P("action", action),
	).WithBase(env.Base)
}

// ColAction renders the chat time and chat log buttons for users who attended.
func ColAction(env table.Env, row table.Row) string {
	if row.Empty("starttime") {
		return ""
	}
	id := row.Int64("id")
	btn := markup.Attrs{"class": "btn"}
	return markup.Link(ActionURL(env, id, ActionChatTime), get(env, "btn:chattime"), btn) +
		" " +
		markup.Link(ActionURL(env, id, ActionChatLog), get(env, "btn:chatlog"), btn)
}

// ColPicture renders the user's avatar linked to their profile.
func ColPicture(env table.Env, row table.Row) string {
	return markup.UserPicture(pictureUser(row), markup.PictureOptions{
		CourseID: env.CourseID,
		Link:     true,
		Base:     env.Base,
		AltFormat: func(name string) string {
			return strings.ReplaceAll(get(env, "pictureof"), "{$a}", name)
		},
	})
}

// ColPresent is yes when the user has an attendance start time.
func ColPresent(env table.Env, row table.Row) string {
	if row.Empty("starttime") {
		return get(env, "no")
	}
	return get(env, "yes")
}

func pictureUser(row table.Row) markup.PictureUser {
	return markup.PictureUser{
		ID:        row.Int64("id"),
		Picture:   row.Int64("picture"),
		FirstName: row.String("firstname"),
		LastName:  row.String("lastname"),
		ImageAlt:  row.String("imagealt"),
	}
}

func colFullName(_ table.Env, row table.Row) string {
	return markup.Text(pictureUser(row).FullName())
}

func plainFullName(_ table.Env, row table.Row) string {
	return pictureUser(row).FullName()
}

func colText(field string) table.FormatFunc {
	return func(_ table.Env, row table.Row) string {
		return markup.Text(row.String(field))
	}
}

func colLastAccess(env table.Env, row table.Row) string {
	ts := row.Int64("lastaccess")
	if ts <= 0 {
		return get(env, "never")
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04")
}

// FormatDuration renders seconds as h:mm:ss.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
}

func colTimer(_ table.Env, row table.Row) string {
	return FormatDuration(row.Int64("timer_seconds"))
}
