package model

// A class of transit vehicle. The single-letter codes match what
// networks commonly use in line identifiers.
type Product int

const (
	ProductHighSpeedTrain Product = iota
	ProductRegionalTrain
	ProductSuburbanTrain
	ProductSubway
	ProductTram
	ProductBus
	ProductFerry
	ProductCablecar
	ProductOnDemand
)

var productCodes = [...]byte{'I', 'R', 'S', 'U', 'T', 'B', 'F', 'C', 'P'}

func (p Product) Code() byte {
	if p < 0 || int(p) >= len(productCodes) {
		return '?'
	}
	return productCodes[p]
}

func (p Product) String() string {
	switch p {
	case ProductHighSpeedTrain:
		return "high-speed-train"
	case ProductRegionalTrain:
		return "regional-train"
	case ProductSuburbanTrain:
		return "suburban-train"
	case ProductSubway:
		return "subway"
	case ProductTram:
		return "tram"
	case ProductBus:
		return "bus"
	case ProductFerry:
		return "ferry"
	case ProductCablecar:
		return "cablecar"
	case ProductOnDemand:
		return "on-demand"
	}
	return "unknown"
}

func ProductFromCode(c byte) (Product, bool) {
	for i, code := range productCodes {
		if code == c {
			return Product(i), true
		}
	}
	return 0, false
}

// A set of products, as a bitmask. The zero value means "unknown",
// not "empty".
type ProductSet uint16

func NewProductSet(products ...Product) ProductSet {
	var s ProductSet
	for _, p := range products {
		s |= 1 << uint(p)
	}
	return s
}

const AllProducts = ProductSet(1<<9 - 1)

func (s ProductSet) Contains(p Product) bool {
	return s&(1<<uint(p)) != 0
}

func (s ProductSet) Products() []Product {
	products := []Product{}
	for p := ProductHighSpeedTrain; p <= ProductOnDemand; p++ {
		if s.Contains(p) {
			products = append(products, p)
		}
	}
	return products
}

// Line attribute flags.
type LineAttr uint8

const (
	LineAttrWheelchairAccess LineAttr = 1 << iota
	LineAttrBicycleCarriage
	LineAttrAirConditioned
	LineAttrWifi
)

// Colors for rendering a line, as 0xAARRGGBB.
type Style struct {
	BackgroundColor int
	ForegroundColor int
	BorderColor     int
}

// A transit line. The ID is stable across queries: networks that
// don't assign one get a deterministic id derived from the line's
// identity fields.
type Line struct {
	ID      string
	Network string
	Product Product
	Label   string
	Name    string
	Style   *Style
	Attrs   LineAttr
	Message string
}

// Builds a Line, deriving the id from network, product, label and
// name when none is supplied.
func NewLine(id, network string, product Product, label, name string) Line {
	l := Line{
		ID:      id,
		Network: network,
		Product: product,
		Label:   label,
		Name:    name,
	}
	if l.ID == "" {
		l.ID = l.deriveID()
	}
	return l
}

func (l Line) deriveID() string {
	return l.Network + "|" + string(l.Product.Code()) + "|" + l.Label + "|" + l.Name
}

func (l Line) Equal(o Line) bool {
	return l.ID == o.ID
}
