package cache

import (
	"encoding/json"
	"fmt"
)

// TagType 资源类型
type TagType string

// 日记应用使用的资源类型
const (
	TagEntry    TagType = "Entry"
	TagStats    TagType = "Stats"
	TagCategory TagType = "Category"
)

// ListID 列表查询提供的标签ID
const ListID = "LIST"

// Tag 缓存标签，ID为空表示整个类型
type Tag struct {
	Type TagType
	ID   string
}

// TypeTag 类型级标签，匹配该类型下所有条目
func TypeTag(t TagType) Tag {
	return Tag{Type: t}
}

// ListTag 列表标签
func ListTag(t TagType) Tag {
	return Tag{Type: t, ID: ListID}
}

// IDTag 单个资源的标签
func IDTag(t TagType, id any) Tag {
	return Tag{Type: t, ID: fmt.Sprint(id)}
}

// Matches 类型相同，且任一方ID为空或ID相同
func (t Tag) Matches(other Tag) bool {
	if t.Type != other.Type {
		return false
	}
	return t.ID == "" || other.ID == "" || t.ID == other.ID
}

func (t Tag) String() string {
	if t.ID == "" {
		return string(t.Type)
	}
	return string(t.Type) + ":" + t.ID
}

func intersects(provided, invalidated []Tag) bool {
	for _, p := range provided {
		for _, i := range invalidated {
			if p.Matches(i) {
				return true
			}
		}
	}
	return false
}

// NoParams 无参数查询使用的参数类型
type NoParams struct{}

// Key 缓存键：端点名加序列化后的参数
func Key[P any](endpoint string, params P) string {
	b, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%s(%v)", endpoint, params)
	}
	return endpoint + "(" + string(b) + ")"
}
