// Package engine runs directive patches against files on disk.
//
// One Apply is a complete read, patch and write cycle:
//
//  1. Read the file into memory (fileio.Read).
//  2. Decide every change with blockpatch.Patch. No mutation happens here.
//  3. Optionally copy the file to <path>.bak.
//  4. Replace the file atomically (fileio.Replace), only if the patch changed
//     something and DryRun is off.
//  5. Record the run: log line, span, Prometheus counters and journal entry.
//
// A failure at any step before 4 leaves the file exactly as it was.
//
// Watch repeats Apply whenever the file changes, which keeps a directive in
// place while other provisioning steps or package upgrades rewrite the file.
//
// # Usage
//
//	store, _ := stores.NewSQLiteStore(stores.Config{Path: "/var/lib/confpatch/journal.db"})
//	_ = store.Init(ctx)
//	_ = store.Migrate(ctx)
//
//	eng := engine.New(logger, engine.WithJournal(store), engine.WithMetrics(metrics))
//	out, err := eng.Apply(ctx, "/etc/nginx/nginx.conf", directive, engine.Options{Backup: true})
//	switch {
//	case blockpatch.IsStructural(err):
//	    // the http block is missing or malformed
//	case err != nil:
//	    // not found or I/O
//	case out.Written:
//	    // file updated
//	}
package engine
