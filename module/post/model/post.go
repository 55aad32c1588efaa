package model

// Post 只读投影，通知里附带帖子摘要
type Post struct {
	ID      string `bson:"_id"             json:"_id"`
	Content string `bson:"text"            json:"content"`
	Image   string `bson:"image,omitempty" json:"image,omitempty"`
}

func (p *Post) GetTableName() string {
	return "posts"
}
