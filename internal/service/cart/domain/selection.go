// internal/service/cart/domain/selection.go
package domain

import "sort"

// Selection 是被勾选进下次结算的购物车行复合键集合。
// 不变式：任何读取时刻，它都是当前购物车复合键的子集。
type Selection map[string]struct{}

// NewSelection 从键列表构造勾选集。
func NewSelection(keys ...string) Selection {
	sel := make(Selection, len(keys))
	for _, k := range keys {
		sel[k] = struct{}{}
	}
	return sel
}

// Has 报告某个复合键是否被勾选。
func (s Selection) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Toggle 翻转一个键的勾选状态。
func (s Selection) Toggle(key string) {
	if s.Has(key) {
		delete(s, key)
	} else {
		s[key] = struct{}{}
	}
}

// Keys 返回排序后的键列表，持久化与比较都用它保证稳定。
func (s Selection) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Intersect 返回勾选集与当前购物车键集合的交集。
// 被移除的行对应的悬空键在这里被丢弃。
func (s Selection) Intersect(items []CartItem) Selection {
	valid := make(map[string]struct{}, len(items))
	for _, it := range items {
		valid[it.Key()] = struct{}{}
	}
	result := make(Selection, len(s))
	for k := range s {
		if _, ok := valid[k]; ok {
			result[k] = struct{}{}
		}
	}
	return result
}

// SelectedItems 过滤出购物车中被勾选的行。
func (s Selection) SelectedItems(items []CartItem) []CartItem {
	selected := make([]CartItem, 0, len(s))
	for _, it := range items {
		if s.Has(it.Key()) {
			selected = append(selected, it)
		}
	}
	return selected
}
