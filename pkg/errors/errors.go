package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrImmutableField 不可变字段被修改：如归还时间一经写入不可更改
var ErrImmutableField = errors.New("字段一经写入不可修改")
