package pipeline

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// imageRule extracts the lead image URL from a recipe page, returning
// an empty string when the page does not match the expected layout.
type imageRule func(doc *goquery.Document) string

func attrOf(doc *goquery.Document, selector, attribute string) string {
	value, _ := doc.Find(selector).First().Attr(attribute)
	return value
}

// siteImageRules maps recipe site domains to their lead image selectors.
// Keys are registrable domains; lookup strips subdomains.
var siteImageRules = map[string]imageRule{
	"bbcgoodfood.com": func(doc *goquery.Document) string {
		return attrOf(doc, "section.post-header img.image__img", "src")
	},
	"seriouseats.com": func(doc *goquery.Document) string {
		return attrOf(doc, "div.article-content img.primary-image", "src")
	},
	"foodnetwork.com": func(doc *goquery.Document) string {
		src := attrOf(doc, "div.recipe-lead img.m-MediaBlock__a-Image", "src")
		if src == "" {
			return ""
		}
		return "https:" + src
	},
	"food52.com": func(doc *goquery.Document) string {
		srcset := attrOf(doc, "div#recipeCarouselRoot picture source", "data-srcset")
		if srcset == "" {
			return ""
		}
		return strings.TrimSpace(strings.Split(srcset, ",")[0])
	},
	"marthastewart.com": func(doc *goquery.Document) string {
		return attrOf(doc, "aside.recipe-tout-image div.inner-container button", "data-image")
	},
	"bbc.co.uk": func(doc *goquery.Document) string {
		return attrOf(doc, "div.recipe-media img", "src")
	},
	"allrecipes.com": func(doc *goquery.Document) string {
		return attrOf(doc, "div.article-content img", "src")
	},
	"delish.com": func(doc *goquery.Document) string {
		return attrOf(doc, "div.content-lead img", "src")
	},
	"cookstr.com": func(doc *goquery.Document) string {
		src := attrOf(doc, "div.mainImg img", "src")
		if src == "" {
			return ""
		}
		return "https:" + src
	},
	"honestcooking.com": func(doc *goquery.Document) string {
		return attrOf(doc, "div.post-content img", "data-src")
	},
}

// imageRuleFor finds the extraction rule for a host, matching the
// registrable domain so subdomains like www. resolve too.
func imageRuleFor(host string) (imageRule, bool) {
	host = strings.ToLower(host)
	if rule, ok := siteImageRules[host]; ok {
		return rule, true
	}
	for domain, rule := range siteImageRules {
		if strings.HasSuffix(host, "."+domain) {
			return rule, true
		}
	}
	return nil, false
}
