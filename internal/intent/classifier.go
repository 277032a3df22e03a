package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// Intent is the closed set of purchase-flow intents the assistant understands.
type Intent string

const (
	IntentViewCart       Intent = "VIEW_CART"
	IntentAddToCart      Intent = "ADD_TO_CART"
	IntentRemoveFromCart Intent = "REMOVE_FROM_CART"
	IntentSearchProducts Intent = "SEARCH_PRODUCTS"
	IntentProductDetail  Intent = "PRODUCT_DETAIL"
	IntentStartCheckout  Intent = "START_CHECKOUT"
	IntentConfirmOrder   Intent = "CONFIRM_ORDER"
	IntentInitPayment    Intent = "INIT_PAYMENT"
	IntentSmalltalk      Intent = "SMALLTALK"
)

// String implements fmt.Stringer.
func (i Intent) String() string {
	return string(i)
}

type patternGroup struct {
	intent   Intent
	patterns []*regexp.Regexp
}

// Groups are evaluated top to bottom, first match wins. Patterns are written
// against folded text (lowercased, diacritics stripped), so "añade" matches
// "anade".
var patternGroups = []patternGroup{
	{
		intent: IntentAddToCart,
		patterns: compileAll(
			`\b(agrega|agregar|anade|anadir|aniade)\b`,
			`\b(pon|mete)\b.*\bcarrito\b`,
			`\bquiero\s+\d+\b`,
		),
	},
	{
		intent: IntentRemoveFromCart,
		patterns: compileAll(
			`\b(quita|quitar|elimina|eliminar|remueve|remover)\b`,
			`\b(saca|sacar)\b.*\bcarrito\b`,
		),
	},
	{
		intent: IntentViewCart,
		patterns: compileAll(
			`\b(ver|muestra|mostrar|abre|abrir|revisa|revisar)\b.*\bcarrito\b`,
			`\bmi carrito\b`,
			`^carrito$`,
		),
	},
	{
		intent: IntentStartCheckout,
		patterns: compileAll(
			`\bcomprar\b`,
			`\biniciar compra\b`,
			`\bhacer (el )?pedido\b`,
			`\bfinalizar compra\b`,
			`\bcheckout\b`,
		),
	},
	{
		intent: IntentConfirmOrder,
		patterns: compileAll(
			`\bconfirmo\b`,
			`\bconfirmar (el )?pedido\b`,
			`\bautorizo\b`,
		),
	},
	{
		intent: IntentInitPayment,
		patterns: compileAll(
			`\bpagar\b`,
			`\b(metodos?|formas?) de pago\b`,
			`\bcomo pago\b`,
		),
	},
	{
		intent: IntentProductDetail,
		patterns: compileAll(
			`\bdetalles?\b`,
			`\bmas informacion\b`,
			`\binfo de\b`,
			`\bficha\b`,
		),
	},
	{
		intent: IntentSearchProducts,
		patterns: compileAll(
			`\b(busca|buscar|buscame)\b`,
			`\b(tienes|tienen|venden|vendes)\b`,
			`\bhay\b`,
			`\bcatalogo\b`,
			`\bproductos?\b`,
		),
	},
}

var (
	confirmationCodeRe = regexp.MustCompile(`^\d{6}$`)
	manualAuthRe       = regexp.MustCompile(`\bsi autorizo\b`)
	digitsRe           = regexp.MustCompile(`\d+`)
)

// Classify maps free text to an Intent. The confirmation shortcuts (a bare
// 6-digit code or an explicit authorization phrase) are checked before the
// general pattern groups; anything unmatched is smalltalk. Pure function.
func Classify(text string) Intent {
	folded := Fold(text)
	if folded == "" {
		return IntentSmalltalk
	}

	if confirmationCodeRe.MatchString(folded) || manualAuthRe.MatchString(folded) {
		return IntentConfirmOrder
	}

	for _, group := range patternGroups {
		for _, pattern := range group.patterns {
			if pattern.MatchString(folded) {
				return group.intent
			}
		}
	}
	return IntentSmalltalk
}

// ConfirmationCode extracts a bare 6-digit confirmation code, if the whole
// message is one.
func ConfirmationCode(text string) (string, bool) {
	folded := Fold(text)
	if confirmationCodeRe.MatchString(folded) {
		return folded, true
	}
	return "", false
}

// IsManualAuthorization reports whether the text carries the literal
// authorization phrase that bypasses numeric token validation.
func IsManualAuthorization(text string) bool {
	return manualAuthRe.MatchString(Fold(text))
}

// ExtractQuantity pulls the first integer out of the message, defaulting to 1.
func ExtractQuantity(text string) int {
	match := digitsRe.FindString(Fold(text))
	if match == "" {
		return 1
	}
	qty, err := strconv.Atoi(match)
	if err != nil || qty < 1 {
		return 1
	}
	return qty
}

var queryStopwords = map[string]struct{}{
	"agrega": {}, "agregar": {}, "anade": {}, "anadir": {}, "aniade": {},
	"quita": {}, "quitar": {}, "elimina": {}, "eliminar": {}, "remueve": {}, "remover": {},
	"busca": {}, "buscar": {}, "buscame": {}, "tienes": {}, "tienen": {}, "venden": {}, "vendes": {},
	"quiero": {}, "dame": {}, "ver": {}, "hay": {}, "muestra": {}, "mostrar": {},
	"detalle": {}, "detalles": {}, "info": {}, "ficha": {},
	"al": {}, "el": {}, "la": {}, "los": {}, "las": {}, "un": {}, "una": {}, "unos": {}, "unas": {},
	"de": {}, "del": {}, "por": {}, "favor": {}, "carrito": {}, "producto": {}, "productos": {},
}

// ExtractQuery strips command verbs, articles and quantities from the message,
// leaving the words that plausibly name a product.
func ExtractQuery(text string) string {
	var kept []string
	for _, word := range strings.Fields(Fold(text)) {
		if _, stop := queryStopwords[word]; stop {
			continue
		}
		if digitsRe.MatchString(word) {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}

// Fold lowercases and strips the Spanish diacritics relevant to matching.
func Fold(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	return strings.Map(func(r rune) rune {
		switch r {
		case 'á':
			return 'a'
		case 'é':
			return 'e'
		case 'í':
			return 'i'
		case 'ó':
			return 'o'
		case 'ú', 'ü':
			return 'u'
		case 'ñ':
			return 'n'
		}
		return r
	}, lowered)
}

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		compiled = append(compiled, regexp.MustCompile(pattern))
	}
	return compiled
}
