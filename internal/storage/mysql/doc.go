// Package mysql implements storage.Store on top of MySQL. Each storage
// transaction maps to one SQL transaction; reads take row locks with
// SELECT ... FOR UPDATE so that concurrent resolver daemons sharing a
// database serialise on the keys they touch. The schema is managed by the
// embedded migrations under deploy/migrations.
package mysql
