package registry

import "pagecraft/internal/domain"

const (
	TypeNavbar       domain.BlockType = "navbar"
	TypeHero         domain.BlockType = "hero"
	TypeFeatures     domain.BlockType = "features"
	TypeFeature      domain.BlockType = "feature"
	TypePricing      domain.BlockType = "pricing"
	TypePricingTier  domain.BlockType = "pricing-tier"
	TypeTestimonials domain.BlockType = "testimonials"
	TypeTestimonial  domain.BlockType = "testimonial"
	TypeFAQ          domain.BlockType = "faq"
	TypeFAQItem      domain.BlockType = "faq-item"
	TypeCTA          domain.BlockType = "cta"
	TypeColumns      domain.BlockType = "columns"
	TypeColumn       domain.BlockType = "column"
	TypeHeading      domain.BlockType = "heading"
	TypeText         domain.BlockType = "text"
	TypeImage        domain.BlockType = "image"
	TypeButton       domain.BlockType = "button"
	TypeFooter       domain.BlockType = "footer"
)

var alignField = Field{Kind: KindEnum, Label: "Alignment", Default: "left", Enum: []string{"left", "center", "right"}}

// Builtin returns the landing-page block catalog.
func Builtin() []Definition {
	return []Definition{
		{
			Type: TypeNavbar, Name: "Navigation bar", Category: "navigation", Icon: "menu",
			Description: "Top navigation with logo and links",
			Parents:     RootOnly(), Children: NoTypes(),
			Schema: Schema{
				"logo":   {Kind: KindString, Label: "Logo text", Default: "Brand", MaxLen: 40},
				"links":  {Kind: KindList, Label: "Links", Default: []any{"Features", "Pricing", "FAQ"}, MaxLen: 8, Item: &Field{Kind: KindString, MaxLen: 30}},
				"sticky": {Kind: KindBool, Label: "Sticky", Default: true},
			},
		},
		{
			Type: TypeHero, Name: "Hero", Category: "header", Icon: "sparkles",
			Description: "Headline section at the top of the page",
			Parents:     RootOnly(), Children: OneOf(TypeHeading, TypeText, TypeImage, TypeButton),
			Schema: Schema{
				"title":      {Kind: KindString, Label: "Title", Default: "Build something great", Required: true, MaxLen: 120},
				"subtitle":   {Kind: KindText, Label: "Subtitle", Default: "", MaxLen: 400},
				"align":      {Kind: KindEnum, Label: "Alignment", Default: "center", Enum: []string{"left", "center", "right"}},
				"background": {Kind: KindColor, Label: "Background", Default: "#ffffff"},
				"imageUrl":   {Kind: KindURL, Label: "Image"},
			},
		},
		{
			Type: TypeFeatures, Name: "Features", Category: "content", Icon: "grid",
			Description: "Grid of product features",
			Parents:     RootOnly(), Children: OneOf(TypeFeature),
			Schema: Schema{
				"title":    {Kind: KindString, Label: "Title", Default: "Features", MaxLen: 120},
				"subtitle": {Kind: KindText, Label: "Subtitle", Default: "", MaxLen: 400},
				"columns":  {Kind: KindInteger, Label: "Columns", Default: 3.0, Min: Bound(1), Max: Bound(6)},
			},
		},
		{
			Type: TypeFeature, Name: "Feature", Category: "content", Icon: "star",
			Description: "Single feature card",
			Parents:     OneOf(TypeFeatures), Children: NoTypes(),
			Schema: Schema{
				"title":       {Kind: KindString, Label: "Title", Default: "Feature", Required: true, MaxLen: 80},
				"description": {Kind: KindText, Label: "Description", Default: "", MaxLen: 500},
				"icon":        {Kind: KindString, Label: "Icon", Default: "check", MaxLen: 40},
			},
		},
		{
			Type: TypePricing, Name: "Pricing", Category: "commerce", Icon: "tag",
			Description: "Pricing table",
			Parents:     RootOnly(), Children: OneOf(TypePricingTier),
			Schema: Schema{
				"title":    {Kind: KindString, Label: "Title", Default: "Pricing", MaxLen: 120},
				"subtitle": {Kind: KindText, Label: "Subtitle", Default: "", MaxLen: 400},
				"currency": {Kind: KindEnum, Label: "Currency", Default: "USD", Enum: []string{"USD", "EUR", "GBP"}},
			},
		},
		{
			Type: TypePricingTier, Name: "Pricing tier", Category: "commerce", Icon: "credit-card",
			Description: "One plan in a pricing table",
			Parents:     OneOf(TypePricing), Children: OneOf(TypeButton),
			Schema: Schema{
				"name":        {Kind: KindString, Label: "Plan name", Default: "Starter", Required: true, MaxLen: 40},
				"price":       {Kind: KindNumber, Label: "Price", Default: 0.0, Min: Bound(0)},
				"period":      {Kind: KindEnum, Label: "Billing period", Default: "month", Enum: []string{"month", "year", "once"}},
				"features":    {Kind: KindList, Label: "Included", Default: []any{}, MaxLen: 20, Item: &Field{Kind: KindString, MaxLen: 120}},
				"highlighted": {Kind: KindBool, Label: "Highlighted", Default: false},
			},
		},
		{
			Type: TypeTestimonials, Name: "Testimonials", Category: "social-proof", Icon: "quote",
			Description: "Customer quotes",
			Parents:     RootOnly(), Children: OneOf(TypeTestimonial),
			Schema: Schema{
				"title": {Kind: KindString, Label: "Title", Default: "What customers say", MaxLen: 120},
			},
		},
		{
			Type: TypeTestimonial, Name: "Testimonial", Category: "social-proof", Icon: "user",
			Description: "Single customer quote",
			Parents:     OneOf(TypeTestimonials), Children: NoTypes(),
			Schema: Schema{
				"quote":     {Kind: KindText, Label: "Quote", Default: "It just works.", Required: true, MaxLen: 600},
				"author":    {Kind: KindString, Label: "Author", Default: "", MaxLen: 80},
				"role":      {Kind: KindString, Label: "Role", Default: "", MaxLen: 80},
				"avatarUrl": {Kind: KindURL, Label: "Avatar"},
			},
		},
		{
			Type: TypeFAQ, Name: "FAQ", Category: "content", Icon: "help-circle",
			Description: "Frequently asked questions",
			Parents:     RootOnly(), Children: OneOf(TypeFAQItem),
			Schema: Schema{
				"title": {Kind: KindString, Label: "Title", Default: "Frequently asked questions", MaxLen: 120},
			},
		},
		{
			Type: TypeFAQItem, Name: "Question", Category: "content", Icon: "message-circle",
			Description: "Question and answer pair",
			Parents:     OneOf(TypeFAQ), Children: NoTypes(),
			Schema: Schema{
				"question": {Kind: KindString, Label: "Question", Default: "Question?", Required: true, MaxLen: 200},
				"answer":   {Kind: KindText, Label: "Answer", Default: "", MaxLen: 2000},
			},
		},
		{
			Type: TypeCTA, Name: "Call to action", Category: "content", Icon: "megaphone",
			Description: "Closing call to action",
			Parents:     RootOnly(), Children: OneOf(TypeButton),
			Schema: Schema{
				"title":       {Kind: KindString, Label: "Title", Default: "Ready to start?", Required: true, MaxLen: 120},
				"description": {Kind: KindText, Label: "Description", Default: "", MaxLen: 400},
				"background":  {Kind: KindColor, Label: "Background", Default: "#111827"},
			},
		},
		{
			Type: TypeColumns, Name: "Columns", Category: "layout", Icon: "columns",
			Description: "Horizontal column layout",
			Parents:     AnyType(), Children: OneOf(TypeColumn),
			Schema: Schema{
				"gap": {Kind: KindInteger, Label: "Gap", Default: 16.0, Min: Bound(0), Max: Bound(64)},
			},
		},
		{
			Type: TypeColumn, Name: "Column", Category: "layout", Icon: "square",
			Description: "One column of a column layout",
			Parents:     OneOf(TypeColumns), Children: OneOf(TypeHeading, TypeText, TypeImage, TypeButton, TypeColumns),
			Schema: Schema{
				"width": {Kind: KindInteger, Label: "Width (of 12)", Default: 6.0, Min: Bound(1), Max: Bound(12)},
			},
		},
		{
			Type: TypeHeading, Name: "Heading", Category: "basic", Icon: "heading",
			Parents: AnyType(), Children: NoTypes(),
			Schema: Schema{
				"text":  {Kind: KindString, Label: "Text", Default: "Heading", Required: true, MaxLen: 200},
				"level": {Kind: KindInteger, Label: "Level", Default: 2.0, Min: Bound(1), Max: Bound(6)},
				"align": alignField,
			},
		},
		{
			Type: TypeText, Name: "Text", Category: "basic", Icon: "type",
			Parents: AnyType(), Children: NoTypes(),
			Schema: Schema{
				"body":  {Kind: KindText, Label: "Body", Default: "", MaxLen: 5000},
				"align": alignField,
			},
		},
		{
			Type: TypeImage, Name: "Image", Category: "basic", Icon: "image",
			Parents: AnyType(), Children: NoTypes(),
			Schema: Schema{
				"src":     {Kind: KindURL, Label: "Source"},
				"alt":     {Kind: KindString, Label: "Alt text", Default: "", MaxLen: 200},
				"rounded": {Kind: KindBool, Label: "Rounded", Default: false},
			},
		},
		{
			Type: TypeButton, Name: "Button", Category: "basic", Icon: "mouse-pointer",
			Parents: AnyType(), Children: NoTypes(),
			Schema: Schema{
				"label":   {Kind: KindString, Label: "Label", Default: "Get started", Required: true, MaxLen: 40},
				"href":    {Kind: KindURL, Label: "Link", Default: "#"},
				"variant": {Kind: KindEnum, Label: "Style", Default: "primary", Enum: []string{"primary", "secondary", "ghost"}},
			},
		},
		{
			Type: TypeFooter, Name: "Footer", Category: "navigation", Icon: "align-bottom",
			Description: "Page footer",
			Parents:     RootOnly(), Children: OneOf(TypeText, TypeButton),
			Schema: Schema{
				"copyright": {Kind: KindString, Label: "Copyright", Default: "", MaxLen: 120},
				"links":     {Kind: KindList, Label: "Links", Default: []any{}, MaxLen: 12, Item: &Field{Kind: KindString, MaxLen: 30}},
			},
		},
	}
}
