// Package generate turns a route manifest and compiled page modules into
// files on disk.
//
// A Generator owns all mutable state of one build: the route cache, the set
// of pathnames already built and the list of generated page names. Pages are
// processed one at a time in manifest order and the paths of a page one at a
// time in the order its module enumerated them, so none of that state is
// locked.
//
// Per page the pipeline is:
//
//  1. skip on-demand routes and drafts
//  2. assemble GenerationOptions (sorted styles, hoisted script, renderers)
//  3. resolve paths: a fixed pathname, or the module's StaticPaths result,
//     which is cached for the rest of the build
//  4. admit each candidate: a pathname already built by another route is
//     kept only if the manifest dispatches that URL to this route
//  5. render through the middleware chain (Invoker) and write (Writer)
//
// Every error is fatal for the build. After the last page, stale output is
// pruned and the BuildGenerated hooks run.
package generate
