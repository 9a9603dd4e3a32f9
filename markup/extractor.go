package markup

// Markers names the tags and class attributes that identify product data.
type Markers struct {
	ListTag      string
	ListingClass string
	ItemTag      string
	TitleTag     string
	LinkTag      string
	PriceClass   string
	DetailClass  string
}

// DefaultMarkers matches the markup of the grocery listing pages:
//
//	<ul class="productLister">
//	    <li>
//	        <h3><a href="URL">Title</a></h3>
//	        <p class="pricePerUnit">£1.8/unit</p>
//	    </li>
//	</ul>
//
// with detail pages holding <p class="productText">.
func DefaultMarkers() Markers {
	return Markers{
		ListTag:      "ul",
		ListingClass: "productLister",
		ItemTag:      "li",
		TitleTag:     "h3",
		LinkTag:      "a",
		PriceClass:   "pricePerUnit",
		DetailClass:  "productText",
	}
}

// TitleLink is the heading of a listing entry and its optional link.
type TitleLink struct {
	Text    string
	Href    string
	HasLink bool
}

// Extractor runs marker-based lookups against parsed pages.
type Extractor struct {
	markers Markers
}

// NewExtractor returns an Extractor for the given markers.
func NewExtractor(markers Markers) *Extractor {
	return &Extractor{markers: markers}
}

// ListingNodes returns the direct item children of the listing container in
// document order. Nested lists are not flattened in.
func (e *Extractor) ListingNodes(page Node) []Node {
	container, ok := page.FindFirstMarked(e.markers.ListTag, e.markers.ListingClass)
	if !ok {
		return nil
	}
	return container.Children(e.markers.ItemTag)
}

// TitleAndLink finds the heading of a product entry. A link without an href
// (or with an empty one) counts as no link.
func (e *Extractor) TitleAndLink(node Node) (TitleLink, bool) {
	heading, ok := node.FindFirst(e.markers.TitleTag)
	if !ok {
		return TitleLink{}, false
	}
	tl := TitleLink{Text: heading.Text()}

	link, ok := heading.FindFirst(e.markers.LinkTag)
	if !ok {
		return tl, true
	}
	if href, ok := link.Attr("href"); ok && href != "" {
		tl.Href = href
		tl.HasLink = true
	}
	return tl, true
}

// PriceText returns the raw text of the price element of a product entry.
func (e *Extractor) PriceText(node Node) (string, bool) {
	price, ok := node.FindFirstMarked("", e.markers.PriceClass)
	if !ok {
		return "", false
	}
	return price.Text(), true
}

// DetailText returns the raw text of the description element of a detail page.
func (e *Extractor) DetailText(page Node) (string, bool) {
	detail, ok := page.FindFirstMarked("", e.markers.DetailClass)
	if !ok {
		return "", false
	}
	return detail.Text(), true
}
