package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/andresvillarreal/comprabot-backend/internal/cart"
	"github.com/andresvillarreal/comprabot-backend/internal/catalog"
	"github.com/andresvillarreal/comprabot-backend/internal/intent"
	"github.com/andresvillarreal/comprabot-backend/internal/owner"
	"github.com/andresvillarreal/comprabot-backend/internal/purchase"
	pkgerrors "github.com/andresvillarreal/comprabot-backend/pkg/errors"
	"github.com/andresvillarreal/comprabot-backend/pkg/logger"
	"github.com/andresvillarreal/comprabot-backend/pkg/metrics"
	"github.com/andresvillarreal/comprabot-backend/pkg/uicontrol"
)

// Input is one inbound chat turn. Voice marks turns that arrived as audio, so
// replies also carry a voice fragment for synthesis.
type Input struct {
	Identity owner.Input
	Text     string
	Voice    bool
}

// Service turns free-form messages into ordered response fragments.
type Service interface {
	Respond(ctx context.Context, input Input, emit EmitFunc) error
}

type service struct {
	carts   cart.Service
	catalog catalog.Service
	orch    purchase.Orchestrator
	logg    *logger.Logger
	metrics *metrics.PurchaseMetrics
}

// NewService wires the conversational pipeline.
func NewService(carts cart.Service, catalogSvc catalog.Service, orch purchase.Orchestrator, logg *logger.Logger, m *metrics.PurchaseMetrics) (Service, error) {
	if carts == nil || catalogSvc == nil || orch == nil {
		return nil, fmt.Errorf("cart, catalog and orchestrator collaborators required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		carts:   carts,
		catalog: catalogSvc,
		orch:    orch,
		logg:    logg,
		metrics: m,
	}, nil
}

// Respond classifies the message and produces fragments lazily through emit.
// Emission order is the production order; a ui_control fragment, when
// present, is always last. Business failures become text fragments rather
// than transport errors, because the user is mid-conversation.
func (s *service) Respond(ctx context.Context, input Input, emit EmitFunc) error {
	classified := intent.Classify(input.Text)
	key := owner.ResolveOptional(input.Identity)

	ctx = s.logg.WithFields(ctx, map[string]any{
		"intent":    classified.String(),
		"owner_key": key.String(),
	})
	s.logg.Info(ctx, "assistant turn")

	send := s.counting(input, emit)

	err := s.dispatch(ctx, classified, key, input, send)
	if err == nil {
		return nil
	}
	if emitErr, ok := err.(*emitError); ok {
		return emitErr.cause
	}

	// business failure: close the turn with a readable message
	s.logg.Error(ctx, "assistant turn failed", err)
	message := "Algo salió mal procesando tu mensaje. Inténtalo de nuevo en un momento."
	if typed := pkgerrors.As(err); typed != nil {
		message = spanishMessage(typed)
	}
	if err := send(ctx, Text(message)); err != nil {
		if emitErr, ok := err.(*emitError); ok {
			return emitErr.cause
		}
		return err
	}
	return nil
}

// dispatch routes the classified intent to its handler. A handler panic is
// converted into an internal error so the turn still closes with a readable
// message instead of tearing down the stream.
func (s *service) dispatch(ctx context.Context, classified intent.Intent, key owner.Key, input Input, send EmitFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("intent handler panicked: %v", r))
		}
	}()

	switch classified {
	case intent.IntentSmalltalk:
		err = send(ctx, Text("¡Hola! Puedo buscar productos, armar tu carrito y acompañarte hasta el pago. ¿Qué necesitas?"))
	case intent.IntentSearchProducts:
		err = s.search(ctx, input.Text, send)
	case intent.IntentProductDetail:
		err = s.productDetail(ctx, input.Text, send)
	case intent.IntentAddToCart:
		err = s.withOwner(ctx, key, send, func(ctx context.Context) error {
			return s.addToCart(ctx, key, input.Text, send)
		})
	case intent.IntentRemoveFromCart:
		err = s.withOwner(ctx, key, send, func(ctx context.Context) error {
			return s.removeFromCart(ctx, key, input.Text, send)
		})
	case intent.IntentViewCart:
		err = s.withOwner(ctx, key, send, func(ctx context.Context) error {
			return s.viewCart(ctx, key, send)
		})
	case intent.IntentStartCheckout:
		err = s.withOwner(ctx, key, send, func(ctx context.Context) error {
			return s.startCheckout(ctx, key, send)
		})
	case intent.IntentConfirmOrder:
		err = send(ctx, Text("Para confirmar necesito el pedido abierto en pantalla. Ingresa allí el código que te enviamos o escribe \"sí autorizo\"."))
		if err == nil {
			err = send(ctx, UI(uicontrol.New(uicontrol.KindAwaitToken)))
		}
	case intent.IntentInitPayment:
		err = send(ctx, Text("Estas son nuestras formas de pago. Elige una desde tu pedido para registrar la referencia."))
		if err == nil {
			err = send(ctx, UI(uicontrol.New(uicontrol.KindShowPaymentMethods)))
		}
	default:
		err = send(ctx, Text("No entendí tu mensaje, ¿puedes repetirlo?"))
	}
	return err
}

// counting wraps emit with fragment metrics and the voice echo: when a turn
// arrived as audio, the first text fragment is doubled as a voice fragment.
func (s *service) counting(input Input, emit EmitFunc) EmitFunc {
	voiced := false
	return func(ctx context.Context, fragment Fragment) error {
		s.metrics.IncFragment(string(fragment.Type))
		if err := emit(ctx, fragment); err != nil {
			return &emitError{cause: err}
		}
		if input.Voice && !voiced && fragment.Type == FragmentText {
			voiced = true
			s.metrics.IncFragment(string(FragmentVoice))
			if err := emit(ctx, Voice(fragment.Text)); err != nil {
				return &emitError{cause: err}
			}
		}
		return nil
	}
}

// emitError marks transport failures so they are not rewritten into a
// conversational reply to a client that is already gone.
type emitError struct {
	cause error
}

func (e *emitError) Error() string {
	return e.cause.Error()
}

func (s *service) withOwner(ctx context.Context, key owner.Key, send EmitFunc, fn func(ctx context.Context) error) error {
	if key.IsZero() {
		return send(ctx, Text("Necesito identificarte para manejar tu carrito. Inicia sesión o continúa desde el chat de la tienda."))
	}
	return fn(ctx)
}

// search degrades to an empty result set on catalog failure; a broken search
// backend should read as "nothing found", not as a dead assistant.
func (s *service) search(ctx context.Context, text string, send EmitFunc) error {
	query := intent.ExtractQuery(text)

	products, err := s.catalog.Search(ctx, query, 10)
	if err != nil {
		s.logg.Error(ctx, "catalog search failed", err)
		products = nil
	}
	if len(products) == 0 {
		return send(ctx, Text("No encontré productos con esa búsqueda. Prueba con otro nombre."))
	}

	if err := send(ctx, Text(fmt.Sprintf("Encontré %d producto(s):", len(products)))); err != nil {
		return err
	}
	if err := send(ctx, Rich(products)); err != nil {
		return err
	}
	return send(ctx, UI(uicontrol.New(uicontrol.KindShowProducts)))
}

func (s *service) productDetail(ctx context.Context, text string, send EmitFunc) error {
	product, err := s.catalog.FindProduct(ctx, intent.ExtractQuery(text))
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return send(ctx, Text("No encontré ese producto en el catálogo."))
		}
		return err
	}

	detail := product.Name
	if product.Description != "" {
		detail += ": " + product.Description
	}
	if err := send(ctx, Text(fmt.Sprintf("%s — $%s.", detail, product.PriceUSD))); err != nil {
		return err
	}
	if err := send(ctx, Rich(product)); err != nil {
		return err
	}
	return send(ctx, UI(uicontrol.New(uicontrol.KindShowProducts)))
}

func (s *service) addToCart(ctx context.Context, key owner.Key, text string, send EmitFunc) error {
	name := intent.ExtractQuery(text)
	if name == "" {
		return send(ctx, Text("¿Qué producto quieres agregar al carrito?"))
	}
	quantity := intent.ExtractQuantity(text)

	view, err := s.carts.AddItem(ctx, key, cart.AddItemInput{
		Ref:      cart.ProductRef{ProductName: name},
		Quantity: quantity,
	})
	if err != nil {
		return err
	}

	added, ok := addedLine(view, name)
	if !ok {
		// the write raced a concurrent clear; do not guess a line
		return send(ctx, Text("No pude confirmar ese producto en tu carrito. Revísalo y vuelve a intentarlo."))
	}

	if err := send(ctx, Text(fmt.Sprintf("Agregué %d x %s. Tu carrito va en $%s.", quantity, added.Name, view.TotalUSD))); err != nil {
		return err
	}
	if err := send(ctx, Rich(view)); err != nil {
		return err
	}
	return send(ctx, UI(uicontrol.AddToCartVisual(uicontrol.ProductPayload{
		ProductID: added.ProductID.String(),
		Name:      added.Name,
		PriceUSD:  added.UnitPriceUSD,
	})))
}

// addedLine finds the cart line matching the requested name, falling back to
// the newest line. An empty view yields no line.
func addedLine(view *cart.View, name string) (cart.Line, bool) {
	if view.IsEmpty() {
		return cart.Line{}, false
	}
	needle := strings.ToLower(name)
	for _, line := range view.Items {
		if strings.Contains(strings.ToLower(line.Name), needle) {
			return line, true
		}
	}
	return view.Items[len(view.Items)-1], true
}

func (s *service) removeFromCart(ctx context.Context, key owner.Key, text string, send EmitFunc) error {
	name := intent.ExtractQuery(text)
	if name == "" {
		return send(ctx, Text("¿Qué producto quieres quitar del carrito?"))
	}

	view, err := s.carts.RemoveItem(ctx, key, cart.ProductRef{ProductName: name})
	if err != nil {
		return err
	}

	if err := send(ctx, Text("Listo, actualicé tu carrito.")); err != nil {
		return err
	}
	if err := send(ctx, Rich(view)); err != nil {
		return err
	}
	return send(ctx, UI(uicontrol.New(uicontrol.KindShowCart)))
}

func (s *service) viewCart(ctx context.Context, key owner.Key, send EmitFunc) error {
	view, err := s.carts.GetView(ctx, key)
	if err != nil {
		return err
	}

	if view.IsEmpty() {
		return send(ctx, Text("Tu carrito está vacío. Dime qué producto buscas y te ayudo."))
	}

	if err := send(ctx, Text(fmt.Sprintf("Tu carrito tiene %d producto(s). Total: $%s (%s %s).",
		len(view.Items), view.TotalUSD, view.LocalCurrency, view.TotalLocal))); err != nil {
		return err
	}
	if err := send(ctx, Rich(view)); err != nil {
		return err
	}
	return send(ctx, UI(uicontrol.New(uicontrol.KindShowCart)))
}

// startCheckout chains start and send_token so one chat message takes the
// user from cart to "enter your code".
func (s *service) startCheckout(ctx context.Context, key owner.Key, send EmitFunc) error {
	started, err := s.orch.Execute(ctx, purchase.StepInput{Step: purchase.StepStart, OwnerKey: key})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
			return send(ctx, Text("Tu carrito está vacío, agrega productos antes de comprar."))
		}
		return err
	}

	if err := send(ctx, Text(started.Message)); err != nil {
		return err
	}
	if err := send(ctx, Rich(started.Order)); err != nil {
		return err
	}

	sent, err := s.orch.Execute(ctx, purchase.StepInput{
		Step:     purchase.StepSendToken,
		OwnerKey: key,
		OrderID:  started.Order.ID,
	})
	if err != nil {
		return err
	}
	if err := send(ctx, Text(sent.Message)); err != nil {
		return err
	}
	return send(ctx, UI(sent.UI))
}

func spanishMessage(err *pkgerrors.Error) string {
	switch err.Code() {
	case pkgerrors.CodeNotFound:
		return "No encontré lo que mencionas. Revisa el nombre e inténtalo otra vez."
	case pkgerrors.CodeValidation:
		return "Me falta información para hacer eso. ¿Puedes darme más detalles?"
	case pkgerrors.CodeStateConflict:
		return "Ese paso no está disponible en este momento para tu pedido."
	case pkgerrors.CodeUnauthorized:
		return "Necesito identificarte para continuar. Inicia sesión e inténtalo de nuevo."
	}
	return "Algo salió mal procesando tu mensaje. Inténtalo de nuevo en un momento."
}
