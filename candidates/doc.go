/*
Package candidates turns wordlist entries into candidate subdomain names to be
resolved.

A [Source] joins each entry with the target domain, lazily and in wordlist
order. Entries that would make the candidate name exceed the maximum domain
name length are skipped (with a debug notice), but never abort the sequence.
Empty and duplicate entries are passed on as-is: duplicates are simply queried
again.

Usage

	words, err := candidates.LoadWordlist("subdomains.txt")
	src := candidates.New(words, "example.com")
	for name, ok := src.Next(); ok; name, ok = src.Next() {
	    // resolve name
	}
*/
package candidates
