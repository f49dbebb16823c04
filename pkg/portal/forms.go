package portal

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// hiddenFields collects the page's hidden inputs (__VIEWSTATE and friends)
// so the WebForms postback state can be replayed on the next request.
func hiddenFields(doc *goquery.Document) url.Values {
	form := url.Values{}
	doc.Find("input[type='hidden']").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		value, _ := s.Attr("value")
		form.Set(name, value)
	})
	return form
}

// formAction resolves the page's form action against the page URL. Pages
// with no action (or no form at all) post back to themselves.
func formAction(doc *goquery.Document, pageURL *url.URL) *url.URL {
	action, ok := doc.Find("form").First().Attr("action")
	if !ok || action == "" {
		return pageURL
	}
	ref, err := url.Parse(action)
	if err != nil {
		return pageURL
	}
	if pageURL == nil {
		return ref
	}
	return pageURL.ResolveReference(ref)
}
