package assistant

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"

	"github.com/andresvillarreal/comprabot-backend/internal/cart"
	"github.com/andresvillarreal/comprabot-backend/internal/catalog"
	"github.com/andresvillarreal/comprabot-backend/internal/owner"
	"github.com/andresvillarreal/comprabot-backend/internal/purchase"
	pkgerrors "github.com/andresvillarreal/comprabot-backend/pkg/errors"
	"github.com/andresvillarreal/comprabot-backend/pkg/logger"
	"github.com/andresvillarreal/comprabot-backend/pkg/metrics"
	"github.com/andresvillarreal/comprabot-backend/pkg/uicontrol"
)

type stubCart struct {
	view    *cart.View
	err     error
	removed []cart.ProductRef
}

func (s *stubCart) AddItem(context.Context, owner.Key, cart.AddItemInput) (*cart.View, error) {
	return s.view, s.err
}

func (s *stubCart) RemoveItem(_ context.Context, _ owner.Key, ref cart.ProductRef) (*cart.View, error) {
	s.removed = append(s.removed, ref)
	return s.view, s.err
}

func (s *stubCart) UpdateQuantity(context.Context, owner.Key, cart.ProductRef, int) (*cart.View, error) {
	return s.view, s.err
}

func (s *stubCart) GetView(context.Context, owner.Key) (*cart.View, error) {
	return s.view, s.err
}

type stubCatalog struct {
	results []catalog.ProductSummary
	product *catalog.ProductSummary
	err     error
}

func (s *stubCatalog) GetProduct(context.Context, uuid.UUID) (*catalog.ProductSummary, error) {
	return s.product, s.err
}

func (s *stubCatalog) FindProduct(context.Context, string) (*catalog.ProductSummary, error) {
	return s.product, s.err
}

func (s *stubCatalog) Search(context.Context, string, int) ([]catalog.ProductSummary, error) {
	return s.results, s.err
}

type stubOrchestrator struct {
	results map[string]*purchase.StepResult
	errs    map[string]error
	steps   []string
}

func (s *stubOrchestrator) Execute(_ context.Context, input purchase.StepInput) (*purchase.StepResult, error) {
	s.steps = append(s.steps, input.Step)
	if err := s.errs[input.Step]; err != nil {
		return nil, err
	}
	return s.results[input.Step], nil
}

func newTestService(t *testing.T, carts cart.Service, cat catalog.Service, orch purchase.Orchestrator) Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(carts, cat, orch, logg, metrics.NewPurchaseMetrics(nil))
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc
}

func collect(t *testing.T, svc Service, input Input) []Fragment {
	t.Helper()

	var fragments []Fragment
	err := svc.Respond(context.Background(), input, func(_ context.Context, fragment Fragment) error {
		fragments = append(fragments, fragment)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected respond error: %v", err)
	}
	return fragments
}

func emptyView() *cart.View {
	return &cart.View{SubtotalUSD: "0.00", TotalUSD: "0.00", TotalLocal: "0.00", LocalCurrency: "VES"}
}

func TestSmalltalkNeedsNoOwner(t *testing.T) {
	svc := newTestService(t, &stubCart{}, &stubCatalog{}, &stubOrchestrator{})

	fragments := collect(t, svc, Input{Text: "hola, buenos días"})
	if len(fragments) != 1 {
		t.Fatalf("expected 1 fragment, got %d", len(fragments))
	}
	if fragments[0].Type != FragmentText {
		t.Fatalf("expected text fragment, got %s", fragments[0].Type)
	}
}

func TestSearchDegradesOnCatalogFailure(t *testing.T) {
	svc := newTestService(t, &stubCart{}, &stubCatalog{err: errors.New("db down")}, &stubOrchestrator{})

	fragments := collect(t, svc, Input{Text: "busca harina"})
	if len(fragments) != 1 || fragments[0].Type != FragmentText {
		t.Fatalf("expected a single text fragment, got %#v", fragments)
	}
}

func TestSearchEmitsProductsAndDirective(t *testing.T) {
	cat := &stubCatalog{results: []catalog.ProductSummary{{Name: "Harina PAN", PriceUSD: "2.50"}}}
	svc := newTestService(t, &stubCart{}, cat, &stubOrchestrator{})

	fragments := collect(t, svc, Input{Text: "busca harina"})
	if len(fragments) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(fragments))
	}
	if fragments[1].Type != FragmentRich {
		t.Fatalf("expected rich fragment second, got %s", fragments[1].Type)
	}
	last := fragments[2]
	if last.Type != FragmentUIControl || last.UI.Kind != uicontrol.KindShowProducts {
		t.Fatalf("expected trailing show_products directive, got %#v", last)
	}
}

func TestAddToCartEmitsVisualDirective(t *testing.T) {
	view := emptyView()
	view.Items = []cart.Line{{ProductID: uuid.New(), Name: "Harina PAN", UnitPriceUSD: "2.50", Quantity: 2, LineTotalUSD: "5.00"}}
	view.TotalUSD = "5.80"
	svc := newTestService(t, &stubCart{view: view}, &stubCatalog{}, &stubOrchestrator{})

	fragments := collect(t, svc, Input{
		Identity: owner.Input{SessionID: "s1"},
		Text:     "agrega 2 harina pan",
	})
	if len(fragments) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(fragments))
	}
	last := fragments[2]
	if last.Type != FragmentUIControl || last.UI.Kind != uicontrol.KindAddToCartVisual {
		t.Fatalf("expected trailing add_to_cart_visual directive, got %#v", last)
	}
	if last.UI.Product == nil || last.UI.Product.Name != "Harina PAN" {
		t.Fatalf("expected product payload, got %#v", last.UI.Product)
	}
}

func TestAddToCartWithEmptyPostAddView(t *testing.T) {
	// AddItem reports success but the returned view carries no lines
	svc := newTestService(t, &stubCart{view: emptyView()}, &stubCatalog{}, &stubOrchestrator{})

	fragments := collect(t, svc, Input{
		Identity: owner.Input{SessionID: "s1"},
		Text:     "agrega cafe",
	})
	if len(fragments) != 1 || fragments[0].Type != FragmentText {
		t.Fatalf("expected a single text fragment, got %#v", fragments)
	}
}

func TestCartMutationWithoutOwner(t *testing.T) {
	svc := newTestService(t, &stubCart{view: emptyView()}, &stubCatalog{}, &stubOrchestrator{})

	fragments := collect(t, svc, Input{Text: "agrega 2 harina pan"})
	if len(fragments) != 1 || fragments[0].Type != FragmentText {
		t.Fatalf("expected a single identify-yourself text fragment, got %#v", fragments)
	}
}

func TestCheckoutChainsStartAndSendToken(t *testing.T) {
	orderID := uuid.New()
	orch := &stubOrchestrator{
		results: map[string]*purchase.StepResult{
			purchase.StepStart: {
				Step:    purchase.StepStart,
				Message: "Tu pedido fue creado.",
				Order:   &purchase.OrderSummary{ID: orderID, TotalUSD: "23.20"},
			},
			purchase.StepSendToken: {
				Step:    purchase.StepSendToken,
				Message: "Te enviamos un código.",
				UI:      uicontrol.New(uicontrol.KindAwaitToken),
			},
		},
	}
	svc := newTestService(t, &stubCart{}, &stubCatalog{}, orch)

	fragments := collect(t, svc, Input{
		Identity: owner.Input{CustomerID: "u1"},
		Text:     "quiero comprar ahora",
	})

	if len(orch.steps) != 2 || orch.steps[0] != purchase.StepStart || orch.steps[1] != purchase.StepSendToken {
		t.Fatalf("expected start then send_token, got %v", orch.steps)
	}
	last := fragments[len(fragments)-1]
	if last.Type != FragmentUIControl || last.UI.Kind != uicontrol.KindAwaitToken {
		t.Fatalf("expected trailing await_token directive, got %#v", last)
	}
}

func TestCheckoutWithEmptyCart(t *testing.T) {
	orch := &stubOrchestrator{
		errs: map[string]error{
			purchase.StepStart: pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty"),
		},
	}
	svc := newTestService(t, &stubCart{}, &stubCatalog{}, orch)

	fragments := collect(t, svc, Input{
		Identity: owner.Input{CustomerID: "u1"},
		Text:     "iniciar compra",
	})
	if len(fragments) != 1 || fragments[0].Type != FragmentText {
		t.Fatalf("expected a single cart-empty text fragment, got %#v", fragments)
	}
}

func TestBusinessErrorBecomesTextFragment(t *testing.T) {
	carts := &stubCart{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
	svc := newTestService(t, carts, &stubCatalog{}, &stubOrchestrator{})

	fragments := collect(t, svc, Input{
		Identity: owner.Input{SessionID: "s1"},
		Text:     "agrega harina pan",
	})
	last := fragments[len(fragments)-1]
	if last.Type != FragmentText || last.Text == "" {
		t.Fatalf("expected closing text fragment, got %#v", last)
	}
}

func TestVoiceInputEchoesVoiceFragment(t *testing.T) {
	svc := newTestService(t, &stubCart{}, &stubCatalog{}, &stubOrchestrator{})

	fragments := collect(t, svc, Input{Text: "hola", Voice: true})
	if len(fragments) != 2 {
		t.Fatalf("expected text plus voice fragment, got %d", len(fragments))
	}
	if fragments[1].Type != FragmentVoice || fragments[1].Text != fragments[0].Text {
		t.Fatalf("expected voice echo of the text fragment, got %#v", fragments[1])
	}
}

type panickyCatalog struct{}

func (panickyCatalog) GetProduct(context.Context, uuid.UUID) (*catalog.ProductSummary, error) {
	panic("catalog blew up")
}

func (panickyCatalog) FindProduct(context.Context, string) (*catalog.ProductSummary, error) {
	panic("catalog blew up")
}

func (panickyCatalog) Search(context.Context, string, int) ([]catalog.ProductSummary, error) {
	panic("catalog blew up")
}

func TestHandlerPanicClosesWithTextFragment(t *testing.T) {
	svc := newTestService(t, &stubCart{}, panickyCatalog{}, &stubOrchestrator{})

	fragments := collect(t, svc, Input{Text: "detalle harina pan"})
	if len(fragments) != 1 || fragments[0].Type != FragmentText {
		t.Fatalf("expected a single closing text fragment, got %#v", fragments)
	}
	if fragments[0].Text == "" {
		t.Fatalf("expected a readable message")
	}
}

func TestTransportErrorStopsProducer(t *testing.T) {
	cat := &stubCatalog{results: []catalog.ProductSummary{{Name: "Harina PAN"}}}
	svc := newTestService(t, &stubCart{}, cat, &stubOrchestrator{})

	gone := errors.New("client gone")
	calls := 0
	err := svc.Respond(context.Background(), Input{Text: "busca harina"}, func(context.Context, Fragment) error {
		calls++
		return gone
	})
	if !errors.Is(err, gone) {
		t.Fatalf("expected transport error to surface, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected production to stop after first emit, got %d", calls)
	}
}
