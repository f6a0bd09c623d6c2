package migrations

import "embed"

// Files 暴露 resolver_state 等表的 SQL 迁移文件。
//
//go:embed *.sql
var Files embed.FS
