// Package gorm provides GORM-based implementations of the vault store
// interfaces.
//
// Statements are issued through Raw and Exec with table and column names
// taken from a validated vault.Schema. Writes run in read-committed
// transactions and lock the rows they close with SELECT ... FOR UPDATE.
package gorm
