package model

import "time"

// User 只读投影：实时层只需要展示字段，账号体系由主站维护
type User struct {
	ID         string    `bson:"_id"                  json:"_id"`
	Name       string    `bson:"name"                 json:"name"`
	Username   string    `bson:"username,omitempty"   json:"username,omitempty"`
	ProfilePic string    `bson:"profilePic,omitempty" json:"profilePic"`
	CreatedAt  time.Time `bson:"createdAt,omitempty"  json:"-"`
}

func (u *User) GetTableName() string {
	return "users"
}

// Brief 嵌入通知/消息里的发送者信息
type Brief struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	Username   string `json:"username,omitempty"`
	ProfilePic string `json:"profilePic"`
}

func (u User) Brief() Brief {
	return Brief{ID: u.ID, Name: u.Name, Username: u.Username, ProfilePic: u.ProfilePic}
}

// UnknownBrief 用户已被删除或查不到时的占位
func UnknownBrief(id string) Brief {
	return Brief{ID: id}
}
