package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrLockTimeout 获取资源锁超时：同一志愿者与活动的操作正在进行
var ErrLockTimeout = errors.New("操作正在处理中，请稍后重试")
