// Package session manages the tree of sessions that tool invocations run
// inside.
//
// A session binds an absolute working directory and, optionally, a parent
// session. The parent link is a lookup relation only: the service keeps an
// index from child id to parent id and never an owning collection of
// children, so closing a parent leaves its children untouched.
//
// # Lifecycle
//
//	svc := session.NewService(storage.New(dir))
//	if err := svc.Restore(ctx); err != nil {
//		// some records could not be loaded
//	}
//
//	root, err := svc.Create(ctx, "/path/to/project", "")
//	child, err := svc.Create(ctx, "/path/to/project/sub", root.ID)
//
//	_ = svc.Delete(ctx, root.ID) // root is closed, child stays active
//
// Delete marks a session closed rather than removing it, so a closed parent
// can still be looked up through Get.
//
// # Persistence
//
// When a storage.Storage is supplied every change is written through to
// session/<id>.json. Storage is optional; without it sessions live for the
// lifetime of the process.
//
// # Events
//
// Create publishes event.SessionCreated and Delete publishes
// event.SessionClosed on the global event bus.
package session
