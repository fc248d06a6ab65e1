package llm

import "context"

// FuncClient adapts a function to Client. Stream delivers the whole text as one chunk.
type FuncClient func(ctx context.Context, req Request) (string, error)

func (f FuncClient) Complete(ctx context.Context, req Request) (*Response, error) {
	text, err := f(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Response{Text: text}, nil
}

func (f FuncClient) Stream(ctx context.Context, req Request, onChunk func(string) error) (*Response, error) {
	resp, err := f.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := onChunk(resp.Text); err != nil {
		return nil, err
	}
	return resp, nil
}
