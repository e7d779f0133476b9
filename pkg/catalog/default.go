package catalog

// Pages measured when no catalog override is given.
var defaultURLs = []string{
	"https://ess.jio.com",
	"https://www.jiocinema.com",
	"https://www.jiomart.com",
	"https://www.jio.com",
	"https://www.flipkart.com",
	"https://www.amazon.com",
	"https://www.news18.com",
	"https://timesofindia.indiatimes.com/",
	"https://www.ndtv.com/",
	"https://www.indiatoday.in/",
	"https://www.thehindu.com/",
	"https://www.firstpost.com/",
	"https://www.deccanchronicle.com/",
	"https://www.oneindia.com/",
	"https://scroll.in/",
	"https://www.financialexpress.com/",
	"https://www.outlookindia.com/",
	"https://www.thequint.com/",
	"https://www.freepressjournal.in/",
	"https://telanganatoday.com/",
	"https://www.asianage.com/",
	"https://www.tentaran.com/",
	"https://topyaps.com/",
	"http://www.socialsamosa.com/",
	"https://www.techgenyz.com/",
	"https://www.orissapost.com/",
	"http://www.teluguglobal.in/",
	"https://www.yovizag.com/",
	"http://www.abcrnews.com/",
	"http://www.navhindtimes.in/",
	"https://chandigarhmetro.com/",
	"https://starofmysore.com/",
	"https://leagueofindia.com/",
	"https://arunachaltimes.in/",
	"https://www.latestnews1.com/",
	"https://knnindia.co.in/home",
	"https://newstodaynet.com/",
	"https://www.headlinesoftoday.com/",
	"https://www.gudstory.com/",
	"http://www.thetimesofbengal.com/",
	"http://www.risingkashmir.com/",
	"http://news.statetimes.in",
	"http://www.thenorthlines.com/",
	"https://thelivenagpur.com/",
	"https://doonhorizon.in/",
	"http://creativebharat.com/",
	"https://www.emitpost.com/",
	"newsdeets.com",
	"timesnowindia.com",
	"sinceindependence.com",
	"newsblare.com",
	"delhincrnews.in",
	"liveatnews.com",
	"democraticjagat.com",
	"bilkulonline.com",
	"quintdaily.com",
	"pressmirchi.com",
	"notabletoday.blogspot.com",
	"indiannewsqld.com.au",
	"udaybulletin.com",
	"jaianndata.com",
	"campusbeat.in",
	"ytosearch.com",
	"thenewshimachal.com",
	"sportskanazee.com",
	"absoni12.blogspot.com",
	"atulyaloktantranews.com",
}

// Default returns the built-in catalog of news and e-commerce front pages.
func Default() Catalog {
	return New(defaultURLs...)
}
