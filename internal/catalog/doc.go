// Package catalog loads article metadata into the gateway.
//
// The catalog backs the public lookup endpoint and the readings listing:
// it holds each article's title, permalink, page count and visibility.
// Articles are described by a YAML manifest pointing at markdown sources;
// the first heading is the title and every <!--nextpage--> marker starts a
// new page.
package catalog
