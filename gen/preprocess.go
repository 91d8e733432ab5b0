package gen

import (
	"bytes"

	"google.golang.org/protobuf/types/descriptorpb"
)

// Preprocessor runs before code generation. It may rewrite the descriptor
// set and may write Go source into buf; that source is emitted at the top of
// every bindings file.
type Preprocessor interface {
	Process(fds *descriptorpb.FileDescriptorSet, buf *bytes.Buffer) error
}

// PreprocessorFunc adapts a function to Preprocessor.
type PreprocessorFunc func(fds *descriptorpb.FileDescriptorSet, buf *bytes.Buffer) error

// Process calls f.
func (f PreprocessorFunc) Process(fds *descriptorpb.FileDescriptorSet, buf *bytes.Buffer) error {
	return f(fds, buf)
}

// Inject returns a preprocessor that only contributes src.
func Inject(src string) Preprocessor {
	return PreprocessorFunc(func(_ *descriptorpb.FileDescriptorSet, buf *bytes.Buffer) error {
		buf.WriteString(src)
		return nil
	})
}
