/*
Package resilience provides a circuit breaker for the retail site driver.

The bridge talks to exactly one upstream, and that upstream is a consumer
website with no availability contract. When page loads start failing in a
row, continuing to hammer the site wastes the caller's time and risks
tripping bot countermeasures. The breaker opens after a run of consecutive
failures, fails subsequent loads immediately, and probes for recovery
after a cooldown.

	Closed --[failures]-> Open --[cooldown]-> Half-Open --[success]-> Closed
	                                              |
	                                          [failure]
	                                              |
	                                              v
	                                            Open
*/
package resilience
