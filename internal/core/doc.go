// Package core provides the business logic of csvtable.
//
// This package holds the domain operations independent of any transport. The
// HTTP server and the command line tool both drive a [Service] without
// knowing how tables are loaded, kept or exported.
//
// # Table Store
//
// Loaded tables live in memory in a [Store], keyed by a random UUID handle.
// The store is bounded by [config.StoreConfig.MaxTables] and entries that
// have not been read for [config.StoreConfig.TTL] are evicted by a janitor
// goroutine started with [Service.Start].
//
// # Profiles
//
// A profile is a named set of load and save settings (delimiter, encoding,
// key, required and excluded columns, row rules) read from YAML. Profiles
// are kept in a [Registry] and turned into csv options by [LoadOptions] and
// [SaveOptions]:
//
//	reg, _ := core.NewRegistry(profiles)
//	svc := core.NewService(cfg, reg, nil)
//	sum, err := svc.LoadUpload(ctx, "people.csv", f, size, core.LoadRequest{Profile: "people"})
//
// # Concurrency
//
// Loads, merges and exports share a [LoadLimiter]. Callers that cannot get a
// slot within [config.CSVConfig.MaxWaitTime] fail with [ErrTooManyLoads].
// Every operation records its progress in a [logging.Session] which is
// flushed to slog as one block when the operation ends.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - CSV001-CSV003: Input format errors (no rows, delimiter, encoding)
//   - LOAD001-LOAD004: Load errors (row validation, callbacks, capacity)
//   - TBL001-TBL005: Table errors (store, columns, merge)
//   - FILE001-FILE004: File errors (size, missing file, profile)
//   - EXP001-EXP004: Export errors (Postgres)
package core
