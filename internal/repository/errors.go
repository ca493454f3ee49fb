package repository

import "errors"

var ErrNotFound = errors.New("not found")

// 条件付き更新で対象行が条件に合わなかった（他の更新に先を越された等）
var ErrConflict = errors.New("conflict")

// 一意制約違反（注文番号・メールアドレスなど）
var ErrDuplicate = errors.New("duplicate")
