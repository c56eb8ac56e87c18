package picks

// DefaultFnoSymbols approximates the NSE F&O universe for historical screening.
var DefaultFnoSymbols = []string{
	"RELIANCE", "TCS", "INFY", "HDFCBANK", "ICICIBANK", "HINDUNILVR", "SBIN", "BHARTIARTL",
	"ITC", "KOTAKBANK", "LT", "AXISBANK", "ASIANPAINT", "MARUTI", "TITAN", "BAJFINANCE",
	"HCLTECH", "SUNPHARMA", "WIPRO", "ULTRACEMCO", "NESTLEIND", "TECHM", "POWERGRID", "NTPC",
	"BAJAJFINSV", "INDUSINDBK", "TATAMOTORS", "GRASIM", "JSWSTEEL", "M&M", "HDFC", "ADANIENT",
	"ADANIPORTS", "COALINDIA", "TATASTEEL", "ONGC", "CIPLA", "DIVISLAB", "DRREDDY", "EICHERMOT",
	"HEROMOTOCO", "HINDALCO", "APOLLOHOSP", "BRITANNIA", "BPCL", "DABUR", "GAIL", "HAL",
	"IOC", "PIDILITIND", "SHREECEM", "SBILIFE", "TATACONSUM", "TATAPOWER", "UPL", "VEDL",
	"ZOMATO", "PAYTM", "POLYCAB", "DMART", "BAJAJ-AUTO", "GODREJCP", "HAVELLS", "ICICIPRULI",
	"INDIGO", "JINDALSTEL", "LUPIN", "MCDOWELL-N", "MOTHERSON", "NAUKRI", "PGHH", "SIEMENS",
	"SRF", "TORNTPHARM", "TVSMOTOR", "YESBANK", "IDEA", "BANDHANBNK", "BANKBARODA", "BEL",
	"BHEL", "CANBK", "CHOLAFIN", "CUMMINSIND", "DLF", "EXIDEIND", "FEDERALBNK", "GLENMARK",
	"GMRINFRA", "IDFCFIRSTB", "INDHOTEL", "INDIANB", "IRCTC", "JUBLFOOD", "LICHSGFIN", "LTIM",
	"MANAPPURAM", "MFSL", "MGL", "MUTHOOTFIN", "NATIONALUM", "NAVINFLUOR", "NMDC", "OBEROIRLTY",
	"PEL", "PFC", "PNB", "RBLBANK", "RECLTD", "SAIL", "SUNTV", "SYNGENE",
	"TATACHEM", "TATACOMM", "TATAELXSI", "TORNTPOWER", "TRENT", "VOLTAS", "WHIRLPOOL", "ZEEL",
	"ZYDUSLIFE",
}
