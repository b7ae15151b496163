// Package shortlist embeds the shortlisting pipeline in a Go program without
// running the HTTP server.
//
// A pool is a named set of scored documents. Ingest scores every document
// against a job description and replaces the pool; Query re-ranks the pool
// against a question and asks a generative model about the best matches.
//
//	client, _ := shortlist.New(ctx,
//	    shortlist.WithBolt("shortlist.db"),
//	    shortlist.WithEmbedder(myEmbedder, 1536),
//	    shortlist.WithGenerator(myGenerator),
//	)
//	defer client.Close()
//
//	report, _ := client.Ingest(ctx, "eng", jobDescription, []shortlist.Document{
//	    {Name: "alice.pdf", Body: pdfBytes},
//	    {URL: "https://example.com/bob.pdf"},
//	})
//	res, _ := client.Query(ctx, "eng", "Who has shipped Kafka consumers?", 3)
package shortlist
