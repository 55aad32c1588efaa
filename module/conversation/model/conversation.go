package model

import (
	"sort"
	"time"

	usermodel "SocialNet/module/user/model"
)

// Conversation 单聊或群聊。单聊写入 direct_key（两个成员排序后拼接），唯一索引保证同一对用户只有一个单聊
type Conversation struct {
	ID        string    `bson:"_id"                  json:"_id"`
	IsGroup   bool      `bson:"is_group"             json:"isGroup"`
	Members   []string  `bson:"members"              json:"members"`
	GroupName string    `bson:"group_name,omitempty" json:"groupName,omitempty"`
	Admin     string    `bson:"admin,omitempty"      json:"admin,omitempty"`
	DirectKey string    `bson:"direct_key,omitempty" json:"-"`
	CreatedAt time.Time `bson:"created_at"           json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at"           json:"updatedAt"`
}

func (c *Conversation) GetTableName() string {
	return "conversations"
}

func (c *Conversation) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Others 除 userID 外的成员
func (c *Conversation) Others(userID string) []string {
	out := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		if m != userID {
			out = append(out, m)
		}
	}
	return out
}

func DirectKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + ":" + pair[1]
}

// View 成员已展开
type View struct {
	Conversation
	MemberInfo []usermodel.Brief `json:"memberInfo"`
}
