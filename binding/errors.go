package binding

import "fmt"

// UndefinedAssetError 表示 @name 引用的资源未注册。
type UndefinedAssetError struct {
	Name string
}

func (e *UndefinedAssetError) Error() string {
	return fmt.Sprintf("[Resolve] 未定义的资源 `%s`", e.Name)
}

// UndefinedVariableError 表示 ${name} 引用的变量不在行数据中。
type UndefinedVariableError struct {
	Name string
	Expr string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("[Resolve] 未定义的变量 `%s`（表达式 `%s`）", e.Name, e.Expr)
}

// UnknownFilterError 表示 ${name|filter} 使用了未注册的滤镜。
type UnknownFilterError struct {
	Name string
	Expr string
}

func (e *UnknownFilterError) Error() string {
	return fmt.Sprintf("[Resolve] 未知的滤镜 `%s`（表达式 `%s`）", e.Name, e.Expr)
}
