// internal/service/cart/application/batch.go
package application

// BatchItemResult 是批量操作中单个条目的结果。
type BatchItemResult struct {
	Key string // 条目的复合键
	Err error  // nil 表示成功
}

// BatchResult 汇报一次尽力而为批量操作的逐条结果。
// 失败条目不会中断其余条目的处理；重试策略由调用方决定。
type BatchResult struct {
	Results []BatchItemResult
}

// AllOK 报告是否全部条目都成功。
func (r BatchResult) AllOK() bool {
	for _, item := range r.Results {
		if item.Err != nil {
			return false
		}
	}
	return true
}

// FailedKeys 返回失败条目的复合键。
func (r BatchResult) FailedKeys() []string {
	var keys []string
	for _, item := range r.Results {
		if item.Err != nil {
			keys = append(keys, item.Key)
		}
	}
	return keys
}
