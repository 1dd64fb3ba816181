package model

import "time"

// DailyQuota counts sends attributed to one user on one UTC date. The
// counter is shared by every campaign the user owns and outlives them all.
type DailyQuota struct {
	ID     string `bson:"_id" json:"id"` // "<user_id>_<YYYY-MM-DD>"
	UserID string `bson:"user_id" json:"user_id"`
	Date   string `bson:"date" json:"date"`
	Count  int    `bson:"count" json:"count"`
}

// QuotaDay formats a point in time as the UTC date a send is attributed to.
func QuotaDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// QuotaKey builds the counter document id for a user and UTC date.
func QuotaKey(userID, day string) string {
	return userID + "_" + day
}
