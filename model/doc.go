// Package model defines the contracts between ftsync and the relational store it
// observes.
//
// # Store Types
//
//   - Row: a snapshot of one table row, addressed by column name
//   - Changes: the rows a transaction is about to commit, grouped by kind
//   - TableDescriptor: table name, primary key, columns and searchable spec
//
// # Store Interfaces
//
//   - RowStore: fetches rows, either all of a table or by primary key
//   - Query: a composable, store-native filter that materializes rows
//   - CommitObserver: receives transaction lifecycle notifications
//
// A store adapter (see package sqlstore) implements RowStore and Query, and calls
// every registered CommitObserver around its commits:
//
//	BeforeCommit(ctx, changes)  // before the store commits
//	AfterCommit(ctx, txID)      // after the commit is durable
//	AfterRollback(ctx, txID)    // after an abort
package model
