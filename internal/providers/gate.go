package providers

import "context"

// inflightGate bounds concurrent requests against one upstream.
type inflightGate chan struct{}

func newInflightGate(max int) inflightGate {
	if max <= 0 {
		return nil
	}
	return make(inflightGate, max)
}

func (g inflightGate) acquire(ctx context.Context) error {
	if g == nil {
		return nil
	}
	select {
	case g <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g inflightGate) release() {
	if g != nil {
		<-g
	}
}

// ThrottledLLMClient wraps an LLMClient with a global in-flight cap and an
// optional requests-per-minute limit. Both apply process-wide, across all
// tasks sharing the client.
type ThrottledLLMClient struct {
	inner   LLMClient
	gate    inflightGate
	limiter *RateLimiter
}

func ThrottleLLM(inner LLMClient, maxInflight, requestsPerMinute int) *ThrottledLLMClient {
	c := &ThrottledLLMClient{
		inner: inner,
		gate:  newInflightGate(maxInflight),
	}
	if requestsPerMinute > 0 {
		c.limiter = NewRateLimiter(requestsPerMinute)
	}
	return c
}

func (c *ThrottledLLMClient) Name() string { return c.inner.Name() }

func (c *ThrottledLLMClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	if err := c.gate.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.gate.release()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return c.inner.Complete(ctx, req)
}

// ThrottledOCRProvider wraps an OCRProvider the same way. Cached artifact
// fetches bypass this wrapper entirely; only real recognition runs pay for
// a slot.
type ThrottledOCRProvider struct {
	inner   OCRProvider
	gate    inflightGate
	limiter *RateLimiter
}

func ThrottleOCR(inner OCRProvider, maxInflight, requestsPerMinute int) *ThrottledOCRProvider {
	p := &ThrottledOCRProvider{
		inner: inner,
		gate:  newInflightGate(maxInflight),
	}
	if requestsPerMinute > 0 {
		p.limiter = NewRateLimiter(requestsPerMinute)
	}
	return p
}

func (p *ThrottledOCRProvider) Name() string { return p.inner.Name() }

func (p *ThrottledOCRProvider) Recognize(ctx context.Context, doc []byte, filename string) (*OCRResult, error) {
	if err := p.gate.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.gate.release()

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return p.inner.Recognize(ctx, doc, filename)
}
