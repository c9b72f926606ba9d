package feed

import (
	"time"

	"github.com/italyre/casafeed/pkg/domain"
)

// FallbackSource is the provenance name for curated fallback content,
// distinct from any real feed name so consumers can tell them apart
const FallbackSource = "CasaFeed Premium Content"

// fallbackSeed holds the curated editorial items served when live
// aggregation yields too little. Publish times are relative to the pass.
type fallbackSeed struct {
	title       string
	description string
	link        string
	ageHours    int
	location    string
	price       int64
	category    string
	imageURL    string
}

var fallbackSeeds = []fallbackSeed{
	{
		title:       "Mercato Immobiliare Milano: Crescita del 12% nel Luxury Segment",
		description: "Il mercato immobiliare di Milano registra una crescita significativa nel segmento luxury, con un incremento del 12% rispetto al trimestre precedente. Gli investitori internazionali mostrano particolare interesse per le proprietà nel quadrilatero della moda e nelle zone di Porta Nuova e Brera.",
		link:        "https://www.ilsole24ore.com/art/mercato-immobiliare-milano-crescita-luxury",
		ageHours:    1,
		location:    "Milano",
		category:    "market",
		imageURL:    "/images/milano-luxury-district.jpg",
	},
	{
		title:       "Villa Storica in Toscana: Opportunità di Investimento Esclusiva",
		description: "Magnifica villa del XVII secolo situata nel cuore del Chianti Classico, completamente restaurata con materiali di pregio. La proprietà include 20 ettari di vigneto DOC, piscina panoramica e dependance per ospiti. Un investimento perfetto per il mercato del luxury hospitality.",
		link:        "https://www.luxuryrealestate.it/villa-toscana-chianti-investimento",
		ageHours:    3,
		location:    "Toscana",
		price:       3200000,
		category:    "luxury",
		imageURL:    "/images/tuscany-villa-evening.jpg",
	},
	{
		title:       "Roma Centro: Penthouse con Vista Panoramica sui Fori Imperiali",
		description: "Straordinario attico di 400 mq con terrazza di 200 mq nel cuore della Roma antica. Vista mozzafiato sui Fori Imperiali e sul Colosseo. Completamente ristrutturato con finiture di lusso, ascensore privato e posto auto. Una delle proprietà più esclusive della Capitale.",
		link:        "https://www.casa.it/roma-centro-penthouse-fori-imperiali",
		ageHours:    5,
		location:    "Roma",
		price:       2800000,
		category:    "luxury",
		imageURL:    "/images/rome-penthouse-terrace.jpg",
	},
	{
		title:       "Investimenti Immobiliari 2025: Focus su Sostenibilità e Smart Home",
		description: "Il report annuale sugli investimenti immobiliari evidenzia un trend crescente verso proprietà sostenibili e tecnologicamente avanzate. Le smart home registrano un premium del 15-20% rispetto alle proprietà tradizionali, mentre gli edifici green ottengono certificazioni che aumentano il valore del 25%.",
		link:        "https://www.immobiliare.it/news/investimenti-2025-sostenibilita",
		ageHours:    8,
		category:    "investment",
	},
	{
		title:       "Costa Amalfitana: Villa Fronte Mare con Accesso Privato alla Spiaggia",
		description: "Prestigiosa villa di nuova costruzione con design contemporaneo e vista mare a 180°. Accesso diretto alla spiaggia privata, infinity pool, giardino mediterraneo e garage per 4 auto. Finiture di lusso con marmi di Carrara e tecnologie domotiche all'avanguardia.",
		link:        "https://www.sothebysrealty.it/amalfi-villa-fronte-mare",
		ageHours:    12,
		location:    "Amalfi",
		price:       5500000,
		category:    "luxury",
		imageURL:    "/images/amalfi-coast-villa.jpg",
	},
	{
		title:       "Trend Mercato Nord Italia: Crescita Sostenibile e Nuove Opportunità",
		description: "Il mercato immobiliare del Nord Italia mostra segnali di crescita sostenibile con particolare interesse per soluzioni eco-friendly. Milano, Torino e Venezia guidano la ripresa con investimenti in riqualificazione urbana e progetti di smart city. Gli esperti prevedono una crescita del 8-10% nei prossimi 18 mesi.",
		link:        "https://www.tecnocasa.it/news/trend-mercato-nord-italia-2025",
		ageHours:    18,
		category:    "market",
	},
	{
		title:       "Firenze Centro Storico: Palazzo Rinascimentale Trasformato in Luxury Hotel",
		description: "Eccezionale palazzo del XV secolo nel cuore di Firenze, completamente restaurato e convertito in boutique hotel di lusso. 15 suite esclusive, spa, ristorante stellato e giardino segreto. ROI previsto del 12% annuo nel segmento hospitality di lusso.",
		link:        "https://www.luxuryhotels.it/firenze-palazzo-rinascimentale",
		ageHours:    24,
		location:    "Firenze",
		price:       8900000,
		category:    "investment",
		imageURL:    "/images/florence-palazzo.jpg",
	},
	{
		title:       "Lago di Como: Villa d'Epoca con Parco Secolare in Vendita",
		description: "Magnifica villa liberty del 1920 direttamente sul lago di Como, circondata da un parco di 5 ettari con essenze secolari. Pontile privato, dependance per il personale, garage per 6 auto e helipad. Una delle proprietà più prestigiose del lago.",
		link:        "https://www.lagodicomo-realestate.it/villa-epoca-parco",
		ageHours:    30,
		location:    "Como",
		price:       12000000,
		category:    "luxury",
	},
}

// FallbackItems returns the curated item set with publish times anchored to now
func FallbackItems(now time.Time) []domain.Item {
	items := make([]domain.Item, 0, len(fallbackSeeds))
	for _, seed := range fallbackSeeds {
		item := domain.Item{
			ExternalID:   ContentHash(seed.link, seed.title),
			Title:        seed.title,
			Description:  seed.description,
			URL:          seed.link,
			ImageURL:     seed.imageURL,
			PropertyType: PropertyType(seed.title + " " + seed.description),
			PublishedAt:  now.Add(-time.Duration(seed.ageHours) * time.Hour),
			QualityScore: 100,
			Status:       domain.StatusActive,
			FeedName:     FallbackSource,
			FeedCategory: seed.category,
		}
		if seed.location != "" {
			loc := seed.location
			item.Location = &loc
		}
		if seed.price > 0 {
			price := seed.price
			item.Price = &price
		}
		items = append(items, item)
	}
	return items
}
