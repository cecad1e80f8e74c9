package config

import "fmt"

// FieldError 标识校验失败的配置项。Env 非空时同时给出对应的环境变量名。
type FieldError struct {
	Field  string
	Env    string
	Reason string
}

func (e FieldError) Error() string {
	if e.Env != "" {
		return fmt.Sprintf("%s (%s): %s", e.Field, e.Env, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

// newClientFieldError 客户端配置只来自环境变量，错误里带上变量名方便排查。
func newClientFieldError(field, envKey, reason string) error {
	return FieldError{
		Field:  "Client." + field,
		Env:    ClientEnvPrefix + "_" + envKey,
		Reason: reason,
	}
}
