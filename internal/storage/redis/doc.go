// Package redis implements storage.Store on Redis using optimistic
// transactions: keys read by a transaction are WATCHed at commit time and
// the buffered writes are applied in a single MULTI/EXEC block.
package redis
