// Package alloc assigns stream-local ids while encoding.
//
// An NRBF stream names every object and every library by an int32 id.
// The encoder hands out ids in first-encounter order: the first time a key
// (a graph handle, a library name) is seen it receives the next id, and
// every later sighting returns the same one.
//
// # Allocator
//
// The [Allocator] type provides:
//
//   - Sequential allocation: ids are dense, starting at a base.
//   - Continuation: [Allocator.SetNext] lets a second allocator continue
//     where another stopped, so library ids follow object ids.
//   - Allocation tracking: every allocation is recorded with an optional
//     tag for debugging and validation.
//
// # Usage
//
//	objects := alloc.New[nrbf.Handle](1)
//	id, fresh, err := objects.Alloc(h)
//
//	libraries := alloc.New[string](objects.Next())
//	libID, _, _ := libraries.AllocTagged("MyLib, Version=1.0.0.0", "library")
package alloc
