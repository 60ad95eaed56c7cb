package executor_test

import (
	"fmt"

	"github.com/chicogong/ffmpeg-chain/pkg/compiler"
	"github.com/chicogong/ffmpeg-chain/pkg/executor"
	"github.com/chicogong/ffmpeg-chain/pkg/graph"
	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

// ExampleExecutor demonstrates how a compiled graph is handed to the executor
func ExampleExecutor() {
	g := graph.New(nil)
	src, _ := g.AddSource("in.mp4")
	scale, _ := g.AddFilter("scale", graph.Opt("width", 1280), graph.Opt("height", 720))
	sink, _ := g.AddSink("out.mp4")
	_, _ = g.Connect(src, 0, scale, 0, schemas.MediaVideo)
	_, _ = g.Connect(scale, 0, sink, 0, schemas.MediaVideo)

	spec, err := compiler.New().Compile(g)
	if err != nil {
		fmt.Println(err)
		return
	}

	// In a real program: bin, err := executor.FindFFmpeg("")
	exec := executor.NewExecutor("ffmpeg")
	fmt.Println(spec.CommandLine(exec.Binary()))

	// exec.Execute(ctx, spec, &executor.ExecuteOptions{OnProgress: ...})

	// Output:
	// ffmpeg -i in.mp4 -filter_complex '[0:v]scale=width=1280:height=720[s0]' -map '[s0]' out.mp4
}
