// Package wasmrun builds and serves Go applications compiled to WebAssembly.
//
// An application embeds an App, optionally overriding hooks and registering
// extra commands, and hands it the command line:
//
//	type (
//		B = wasmrun.DefaultBuildArgs
//		S = wasmrun.DefaultServeArgs
//	)
//
//	app := wasmrun.New("myapp", wasmrun.Hooks[B, S]{
//		PostBuild: func(ctx context.Context, bc *wasmrun.BuildContext[B], a wasmrun.Artifacts) error {
//			if err := wasmrun.DefaultPostBuild(ctx, bc, a); err != nil {
//				return err
//			}
//			return os.WriteFile(filepath.Join(a.OutputDir, "robots.txt"), nil, 0o644)
//		},
//	})
//	if err := app.Run(ctx, os.Args[1:]); err != nil {
//		wasmrun.HandleError(err, false)
//	}
//
// Every type in a hook signature has an exported name in this package, so hooks
// can be written from any module.
//
// The build command compiles the frontend unit with the release profile. The serve
// command runs a Dev build, then serves the output directory (or supervises a backend
// process) and rebuilds whenever watched sources change.
package wasmrun
