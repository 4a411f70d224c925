// Package apify submits LinkedIn profile URLs to an Apify actor and returns
// the scraped dataset items.
package apify
